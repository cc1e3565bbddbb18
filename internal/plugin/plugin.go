// Package plugin provides the add-in system for extending reflection output.
// Add-ins register start and end tag callbacks on the reflection writer before the
// document is written, and may add attributes or child elements to the entries the
// writer emits.
package plugin

import (
	"fmt"

	"git.home.luguber.info/inful/mrefbuilder/internal/reflection"
)

// Plugin is an add-in with metadata and a registration hook.
type Plugin interface {
	// Metadata returns the add-in's metadata (name, version, type, capabilities).
	Metadata() PluginMetadata

	// Validate checks the add-in's options from the configuration file.
	// Returns an error if the options are invalid.
	Validate(options map[string]any) error

	// Register installs the add-in's callbacks on the writer. It is called once per
	// build, before the writer emits anything.
	Register(pluginCtx *PluginContext, w *reflection.Writer) error
}

// PluginLifecycle extends Plugin with optional lifecycle hooks.
type PluginLifecycle interface {
	Plugin

	// Init is called once before Register.
	Init() error

	// Cleanup is called after the document has been written.
	Cleanup() error
}

// PluginMetadata describes an add-in's identity and capabilities.
type PluginMetadata struct {
	// Name is the unique add-in identifier used in the addins configuration list.
	Name string

	// Version is the semantic version (e.g., "v1.0.0").
	Version string

	Type PluginType

	Description string
	Author      string

	// Capabilities lists the writer elements the add-in hooks into.
	Capabilities []string

	// Dependencies lists other add-ins this add-in requires.
	Dependencies []PluginDependency
}

// PluginDependency describes a required or optional add-in dependency.
type PluginDependency struct {
	Name     string
	Version  string
	Optional bool
}

// String returns a human-readable representation of the metadata.
func (m PluginMetadata) String() string {
	return fmt.Sprintf("%s@%s (%s)", m.Name, m.Version, m.Type)
}

// Validate checks if the plugin metadata is valid.
func (m PluginMetadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("plugin version is required")
	}
	if !m.Type.IsValid() {
		return fmt.Errorf("invalid plugin type: %s", m.Type)
	}
	return nil
}

// BasePlugin provides default implementations for optional methods.
type BasePlugin struct{}

// Init is a no-op default implementation.
func (b *BasePlugin) Init() error {
	return nil
}

// Cleanup is a no-op default implementation.
func (b *BasePlugin) Cleanup() error {
	return nil
}

// Validate is a no-op default implementation that accepts any options.
func (b *BasePlugin) Validate(options map[string]any) error {
	return nil
}
