package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// requestValidator is the echo.Validator for request bodies and query values.
type requestValidator struct {
	validate *validator.Validate
}

var _ echo.Validator = (*requestValidator)(nil)

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

// Validate checks i against its validate tags and reports failures as 400.
func (v *requestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return validationError(err)
	}
	return nil
}

// Var checks a single value against tag.
func (v *requestValidator) Var(field any, tag string) error {
	return v.validate.Var(field, tag)
}

func validationError(err error) *echo.HTTPError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		messages = append(messages, fieldMessage(fe))
	}
	sort.Strings(messages)
	return echo.NewHTTPError(http.StatusBadRequest, strings.Join(messages, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
