package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate — общий экземпляр валидатора, потокобезопасен
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct проверяет структуру запроса по validate-тегам и возвращает
// список ошибок полей. Пустой список означает успешную валидацию.
func ValidateStruct(s interface{}) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: messageForTag(fe),
		})
	}
	return fields
}

// messageForTag переводит тег валидации в человекочитаемое сообщение
func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "обязательное поле"
	case "max":
		return fmt.Sprintf("длина не должна превышать %s", fe.Param())
	case "min":
		return fmt.Sprintf("длина должна быть не меньше %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("допустимые значения: %s", fe.Param())
	case "url":
		return "должно быть корректным URL"
	case "uuid":
		return "должно быть корректным UUID"
	case "gte":
		return fmt.Sprintf("должно быть не меньше %s", fe.Param())
	case "lte":
		return fmt.Sprintf("должно быть не больше %s", fe.Param())
	}
	return fmt.Sprintf("не прошло проверку %s", fe.Tag())
}
