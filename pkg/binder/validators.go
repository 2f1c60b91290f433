package binder

import (
	"github.com/go-playground/validator/v10"
	"github.com/shishobooks/longbox/pkg/identity"
)

const identityTag = "identity"

// identityValidator accepts only strings shaped like a comic identity, or the
// empty string so it can be combined with omitempty.
func identityValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return identity.Valid(value)
}
