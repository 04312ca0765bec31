package validator

import (
	"strings"

	"github.com/nicelyhorse/all-in-rag/pkg/errors"
)

// ValidationErrors represents a collection of validation errors.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return "validation failed: " + strings.Join(v.Messages(), "; ")
}

// Messages returns all error messages.
func (v *ValidationErrors) Messages() []string {
	if v == nil {
		return nil
	}
	messages := make([]string, len(v.Errors))
	for i, fe := range v.Errors {
		messages[i] = fe.Message
	}
	return messages
}

// Errno converts the validation failure into an ErrInvalidParam carrying
// the translated messages.
func (v *ValidationErrors) Errno() *errors.Errno {
	msg := strings.Join(v.Messages(), "; ")
	return errors.ErrInvalidParam.WithMessages(msg, msg)
}
