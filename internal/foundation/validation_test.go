package foundation

import (
	"testing"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
)

func nonEmpty(field string) Validator[string] {
	return func(v string) ValidationResult {
		if v == "" {
			return Invalid(NewValidationError(field, "required", "value is required"))
		}
		return Valid()
	}
}

func TestValidation(t *testing.T) {
	t.Run("OneOf validator", func(t *testing.T) {
		validator := OneOf("member_order", []string{"declaration", "name"})

		if result := validator("name"); !result.Valid {
			t.Error("Expected 'name' to be valid")
		}
		if result := validator("alphabetical"); result.Valid {
			t.Error("Expected 'alphabetical' to be invalid")
		}
	})

	t.Run("chain combines errors", func(t *testing.T) {
		chain := NewValidatorChain(nonEmpty("a")).Add(OneOf("a", []string{"x"}))

		result := chain.Validate("")
		if result.Valid {
			t.Fatal("Expected empty string to be invalid")
		}
		if len(result.Errors) != 2 {
			t.Errorf("Expected 2 errors, got %d", len(result.Errors))
		}

		if !chain.Validate("x").Valid {
			t.Error("Expected 'x' to be valid")
		}
	})

	t.Run("ToError classifies", func(t *testing.T) {
		if err := Valid().ToError(); err != nil {
			t.Errorf("Expected nil error, got %v", err)
		}
		err := Invalid(NewValidationError("field", "code", "broken")).ToError()
		if !errors.HasCategory(err, errors.CategoryValidation) {
			t.Errorf("Expected validation category, got %v", err)
		}
		if got := NewValidationError("field", "code", "broken").Error(); got != "field 'field': broken" {
			t.Errorf("FieldError.Error() = %q", got)
		}
	})
}
