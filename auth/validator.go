package auth

import (
	"fmt"

	"chat-hub/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Username string `validate:"required,min=3,max=80"`
	Password string `validate:"required,min=8,max=72"`
}

// ValidateRegister checks registration input before any expensive
// cryptographic operation runs.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRegister, err)
	}
	return nil
}
