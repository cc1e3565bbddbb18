package plugin

import (
	"context"
	"log/slog"
	"maps"
)

// PluginContext gives add-ins access to build state without coupling them to the
// build service.
type PluginContext struct {
	// Context is the standard Go context for cancellation and deadlines.
	Context context.Context

	// Logger provides structured logging for add-in operations.
	Logger *slog.Logger

	// BuildID uniquely identifies this build.
	BuildID string

	// Options are the add-in's settings from the configuration file.
	Options map[string]any

	// Data is shared between add-ins of one build.
	Data map[string]any
}

// NewPluginContext creates a new plugin context.
func NewPluginContext(ctx context.Context, logger *slog.Logger, buildID string) *PluginContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginContext{
		Context: ctx,
		Logger:  logger,
		BuildID: buildID,
		Options: make(map[string]any),
		Data:    make(map[string]any),
	}
}

// WithOptions returns a copy of the context carrying one add-in's options. Data stays
// shared.
func (pc *PluginContext) WithOptions(options map[string]any) *PluginContext {
	cp := *pc
	cp.Options = make(map[string]any, len(options))
	maps.Copy(cp.Options, options)
	return &cp
}
