package validator

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

// ratio accepts floats in the closed unit interval.
func validateRatio(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Float32, reflect.Float64:
		v := fl.Field().Float()
		return v >= 0 && v <= 1
	}
	return false
}
