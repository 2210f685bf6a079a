// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	utrPattern = regexp.MustCompile(`^[A-Za-z0-9/_-]{1,64}$`)
	validate   = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	// Пробелы по краям номера платежа допустимы, сервис обрезает их перед сохранением.
	_ = v.RegisterValidation("utr", func(fl validator.FieldLevel) bool {
		return IsValidUTR(strings.TrimSpace(fl.Field().String()))
	})
	return v
}

// IsValidUTR проверяет номер платежа (UTR): от 1 до 64 символов из букв, цифр и знаков "/", "_", "-".
// Пробелы по краям не допускаются, вызывающий обрезает их заранее.
func IsValidUTR(utr string) bool {
	return utrPattern.MatchString(utr)
}

// Struct проверяет структуру по тегам validate и возвращает ошибки в виде поле -> сообщение.
func Struct(v any) map[string]string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return map[string]string{"body": err.Error()}
	}

	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = message(fe)
	}
	return details
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "utr":
		return "must be a payment reference of letters, digits, '/', '_' or '-'"
	}
	return "is invalid"
}
