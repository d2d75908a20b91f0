package types

import (
	"github.com/go-playground/validator/v10"
)

// SetPersonalRequest sets one personal field. An empty string is a valid value.
type SetPersonalRequest struct {
	Value *string `json:"value" validate:"required"`
}

// SetSectionRequest replaces a section body with either text or entries, never both.
type SetSectionRequest struct {
	Text    *string `json:"text,omitempty" validate:"required_without=Entries,excluded_with=Entries"`
	Entries []Entry `json:"entries,omitempty" validate:"required_without=Text"`
}

// SetVisibilityRequest toggles a section on or off
type SetVisibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

// ProjectRequest names a project file on disk or a project stored in the database.
type ProjectRequest struct {
	Path string `json:"path,omitempty" validate:"required_without=Name,excluded_with=Name"`
	Name string `json:"name,omitempty" validate:"required_without=Path,max=200"`
}

// CompileResponse acknowledges a started compile
type CompileResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

var requestValidator = validator.New()

// Validate validates the SetPersonalRequest using the validator.
func (r *SetPersonalRequest) Validate() error {
	return requestValidator.Struct(r)
}

// Validate validates the SetSectionRequest using the validator.
func (r *SetSectionRequest) Validate() error {
	return requestValidator.Struct(r)
}

// Validate validates the SetVisibilityRequest using the validator.
func (r *SetVisibilityRequest) Validate() error {
	return requestValidator.Struct(r)
}

// Validate validates the ProjectRequest using the validator.
func (r *ProjectRequest) Validate() error {
	return requestValidator.Struct(r)
}
