package domain

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

//nolint:gochecknoglobals // validator caches struct metadata and is safe for concurrent use
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the query fields.
func (q *Query) Validate() error {
	if q == nil {
		return errors.New("query cannot be nil")
	}
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	if !q.Window.From.IsZero() && !q.Window.To.IsZero() && q.Window.To.Before(q.Window.From) {
		return errors.New("invalid query: window ends before it starts")
	}
	return nil
}

// Validate checks the descriptor fields.
func (d ServiceDescriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid service %q: %w", d.Name, err)
	}
	return nil
}
