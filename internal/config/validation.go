package config

import (
	"fmt"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation"
)

// Validate checks the configuration after defaults are applied. All problems are
// reported together as one validation error.
func (c *Config) Validate() error {
	return foundation.NewValidatorChain[*Config](
		validateInputs,
		validateEnums,
		validateAddIns,
	).Validate(c).ToError()
}

func validateInputs(c *Config) foundation.ValidationResult {
	if len(c.Inputs.Assemblies) == 0 {
		return foundation.Invalid(foundation.NewValidationError("inputs.assemblies", "required",
			"at least one assembly description is required"))
	}
	var errs []foundation.FieldError
	for i, p := range c.Inputs.Assemblies {
		if p == "" {
			errs = append(errs, foundation.NewValidationError(fmt.Sprintf("inputs.assemblies[%d]", i), "empty", "path cannot be empty"))
		}
	}
	if len(errs) > 0 {
		return foundation.Invalid(errs...)
	}
	return foundation.Valid()
}

func validateEnums(c *Config) foundation.ValidationResult {
	return foundation.OneOf("member_order", []MemberOrder{MemberOrderDeclaration, MemberOrderName})(c.MemberOrder).
		Combine(foundation.OneOf("logging.level", []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError})(c.Logging.Level)).
		Combine(foundation.OneOf("logging.format", []LogFormat{LogFormatText, LogFormatJSON})(c.Logging.Format))
}

func validateAddIns(c *Config) foundation.ValidationResult {
	seen := make(map[string]bool, len(c.AddIns))
	var errs []foundation.FieldError
	for i, a := range c.AddIns {
		field := fmt.Sprintf("addins[%d].name", i)
		switch {
		case a.Name == "":
			errs = append(errs, foundation.NewValidationError(field, "required", "add-in name cannot be empty"))
		case seen[a.Name]:
			errs = append(errs, foundation.NewValidationError(field, "duplicate", "add-in "+a.Name+" is listed more than once"))
		}
		seen[a.Name] = true
	}
	if len(errs) > 0 {
		return foundation.Invalid(errs...)
	}
	return foundation.Valid()
}
