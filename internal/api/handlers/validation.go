package handlers

import (
	"example.com/coastwatch/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	RegisterCustomValidations(validate)
}

// RegisterCustomValidations registers the domain tags on v
func RegisterCustomValidations(v *validator.Validate) {
	_ = v.RegisterValidation("device_type", func(fl validator.FieldLevel) bool {
		return models.DeviceType(fl.Field().String()).Valid()
	})
}

// ValidateStruct validates a struct using validation tags
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
