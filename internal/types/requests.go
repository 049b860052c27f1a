package types

import (
	"github.com/go-playground/validator/v10"
)

// ProcessRequest represents the API request to process a claim.
type ProcessRequest struct {
	ClaimID     string `json:"claim_id" validate:"required,min=1,max=128"`
	Description string `json:"description" validate:"required,min=1"`
}

// Validate validates the ProcessRequest using the validator.
func (r *ProcessRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
