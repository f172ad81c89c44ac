package mappers

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RerunCreateForm is the inbound shape of a rerun request.
type RerunCreateForm struct {
	SourceKey      string `validate:"required"`
	DestinationKey string `validate:"required"`
	Username       string `validate:"required"`
	DisplayName    string `validate:"omitempty,max=255"`
	FieldsJSON     string `validate:"omitempty,json"`
}

func (f RerunCreateForm) Validate() error {
	return validate.Struct(f)
}
