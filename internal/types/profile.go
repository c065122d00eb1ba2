// Package types provides type definitions for structured data used throughout the cv-tailor system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for struct tag validation
var validate = validator.New()

// Experience represents one employment entry in a candidate profile.
// Bullet order is significant within the entry (recency/priority).
type Experience struct {
	ID        string   `json:"id" validate:"required"`
	Title     string   `json:"title" validate:"required"`
	Company   string   `json:"company" validate:"required"`
	StartDate string   `json:"start_date,omitempty"` // YYYY-MM
	EndDate   string   `json:"end_date,omitempty"`   // YYYY-MM, empty means current
	Bullets   []string `json:"bullets"`
	Skills    []string `json:"skills"`
}

// Project represents one project entry in a candidate profile
type Project struct {
	ID      string   `json:"id" validate:"required"`
	Name    string   `json:"name" validate:"required"`
	Bullets []string `json:"bullets"`
	Skills  []string `json:"skills"`
}

// Profile is the full career history of a candidate. It is read-only within
// the tailoring pipeline; tailoring derives a new TailoredProfile instead of
// mutating the source.
type Profile struct {
	Experiences    []Experience `json:"experiences" validate:"dive"`
	Projects       []Project    `json:"projects" validate:"dive"`
	Skills         []string     `json:"skills"`
	Certifications []string     `json:"certifications"`
}

// JobDescription is the free-text posting a profile is tailored against
type JobDescription struct {
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Description string `json:"description" validate:"required"`
}

// TailoredProfile has the same shape as Profile but every bullet has passed
// through rewrite and validation. It is output-only.
type TailoredProfile struct {
	Experiences    []Experience `json:"experiences" validate:"dive"`
	Projects       []Project    `json:"projects" validate:"dive"`
	Skills         []string     `json:"skills"`
	Certifications []string     `json:"certifications"`
}

// ValidationError describes a structural constraint violation, naming the
// violating field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at %s: %s", e.Field, e.Message)
}

// asValidationError converts a validator.ValidationErrors into our typed error,
// keeping only the first violation (one descriptive error per request).
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return &ValidationError{
			Field:   verrs[0].Namespace(),
			Message: fmt.Sprintf("failed %q constraint", verrs[0].Tag()),
		}
	}
	return &ValidationError{Field: "(unknown)", Message: err.Error()}
}

// Validate checks the structural constraints of a profile
func (p *Profile) Validate() error {
	return asValidationError(validate.Struct(p))
}

// Validate checks the structural constraints of a job description
func (j *JobDescription) Validate() error {
	return asValidationError(validate.Struct(j))
}

// Validate checks the structural constraints of a tailored profile before it
// is returned to the caller. A violation is fatal for the request.
func (t *TailoredProfile) Validate() error {
	return asValidationError(validate.Struct(t))
}
