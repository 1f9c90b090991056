package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(Question)
		if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
			sl.ReportError(q.CorrectOptionIndex, "CorrectOptionIndex", "correctOptionIndex", "option_index", "")
		}
	}, Question{})
	return v
}

// Validate checks the definition is well formed. An empty question list is valid.
func (q Quiz) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidQuiz, q.ID, err)
	}
	return nil
}
