package services

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/LovationAdmin/expense-api/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateCredentials turns validator failures into one readable message.
func validateCredentials(op string, c models.Credentials) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError(op, err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() + "." + fe.Tag() {
		case "Email.required", "Password.required":
			msgs = append(msgs, strings.ToLower(fe.Field())+" is required")
		case "Email.email":
			msgs = append(msgs, "email address is invalid")
		case "Password.min":
			msgs = append(msgs, "password must be at least "+fe.Param()+" characters")
		default:
			msgs = append(msgs, strings.ToLower(fe.Field())+" is invalid")
		}
	}
	return validationError(op, strings.Join(msgs, "; "))
}

// NormalizeEmail is applied before every provider call so lookups are case
// insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
