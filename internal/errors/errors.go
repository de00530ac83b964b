// Package errors provides categorized error types shared by hostpulse
// components. Callers classify any error with CategoryOf, which walks the
// wrap chain for the first error that reports a Category.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Category classifies an error for propagation and HTTP mapping.
type Category string

const (
	CategoryUnknown       Category = ""
	CategoryValidation    Category = "validation"
	CategoryNotFound      Category = "not_found"
	CategoryCollection    Category = "collection"
	CategoryDispatch      Category = "dispatch"
	CategoryDatabase      Category = "database"
	CategoryConfiguration Category = "configuration"
)

// Categorized is implemented by errors that carry a Category.
type Categorized interface {
	error
	Category() Category
}

// CategoryOf returns the category of the first categorized error in err's
// chain, or CategoryUnknown.
func CategoryOf(err error) Category {
	var c Categorized
	if stderrors.As(err, &c) {
		return c.Category()
	}
	return CategoryUnknown
}

// Passthroughs so callers need a single errors import.
var (
	Is     = stderrors.Is
	As     = stderrors.As
	New    = stderrors.New
	Join   = stderrors.Join
	Unwrap = stderrors.Unwrap
)

// ErrNotFound matches every NotFoundError via errors.Is.
var ErrNotFound = stderrors.New("not found")

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Resource string
	ID       string
}

// NotFound returns a NotFoundError for resource without an id, suitable as a
// package-level sentinel.
func NotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Category() Category { return CategoryNotFound }

// Is matches ErrNotFound and any NotFoundError for the same resource.
func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	var other *NotFoundError
	if stderrors.As(target, &other) {
		return other.Resource == e.Resource && (other.ID == "" || other.ID == e.ID)
	}
	return false
}

// FieldError is one rejected input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (f FieldError) String() string { return f.Field + ": " + f.Reason }

// ValidationError lists every rejected field of an input.
type ValidationError struct {
	Fields []FieldError
}

// NewValidation returns a ValidationError for a single field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Reason: reason}}}
}

// Add records another rejected field.
func (e *ValidationError) Add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// Err returns nil when no fields were rejected.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Has reports whether field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Category() Category { return CategoryValidation }

// CategorizedError attaches a category and component to a wrapped error.
type CategorizedError struct {
	Err       error
	Cat       Category
	Component string
}

// Wrap categorizes err. A nil err returns nil.
func Wrap(err error, category Category, component string) error {
	if err == nil {
		return nil
	}
	return &CategorizedError{Err: err, Cat: category, Component: component}
}

func (e *CategorizedError) Error() string {
	if e.Component == "" {
		return e.Err.Error()
	}
	return e.Component + ": " + e.Err.Error()
}

func (e *CategorizedError) Unwrap() error      { return e.Err }
func (e *CategorizedError) Category() Category { return e.Cat }
