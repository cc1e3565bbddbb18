package plugin

import "fmt"

// PluginType identifies the category of add-in.
type PluginType string

const (
	// PluginTypeAddIn adds data to the reflection document through writer callbacks.
	PluginTypeAddIn PluginType = "addin"

	// PluginTypeSyntax contributes syntax or platform data to API entries.
	PluginTypeSyntax PluginType = "syntax"
)

// IsValid returns true if the plugin type is recognized.
func (t PluginType) IsValid() bool {
	switch t {
	case PluginTypeAddIn, PluginTypeSyntax:
		return true
	default:
		return false
	}
}

// String returns the string representation of the plugin type.
func (t PluginType) String() string {
	return string(t)
}

// PluginCapability names a writer element an add-in hooks into.
type PluginCapability string

const (
	CapabilityAPIs     PluginCapability = "apis"
	CapabilityAPI      PluginCapability = "api"
	CapabilityTypeData PluginCapability = "typedata"
	CapabilityElements PluginCapability = "elements"
)

// String returns the string representation of the capability.
func (c PluginCapability) String() string {
	return string(c)
}

// PluginError represents an error that occurred within an add-in.
type PluginError struct {
	// PluginName identifies which add-in failed.
	PluginName string

	// Operation describes what the add-in was doing when it failed.
	Operation string

	Err error
}

// Error implements the error interface.
func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %s failed during %s: %v", e.PluginName, e.Operation, e.Err)
}

// Unwrap returns the underlying error for error inspection.
func (e *PluginError) Unwrap() error {
	return e.Err
}

// NewPluginError creates a new plugin error.
func NewPluginError(pluginName, operation string, err error) *PluginError {
	return &PluginError{
		PluginName: pluginName,
		Operation:  operation,
		Err:        err,
	}
}
