package handlers

import (
	"reflect"
	"strings"

	"github.com/geocoder89/expensehub/internal/domain/expense"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	// report fields by their JSON names
	v.RegisterTagNameFunc(func(sf reflect.StructField) string {
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return sf.Name
		}
		return name
	})

	_ = v.RegisterValidation("category", validateCategory)
	_ = v.RegisterValidation("calendardate", validateCalendarDate)
}

func validateCategory(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	return expense.Category(fl.Field().String()).IsValid()
}

// calendardate accepts YYYY-MM-DD or an RFC3339 timestamp.
func validateCalendarDate(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	_, err := expense.ParseDate(fl.Field().String())
	return err == nil
}
