package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/mrefbuilder/internal/logfields"
	"git.home.luguber.info/inful/mrefbuilder/internal/reflection"
)

// Registry manages add-in registration and discovery.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]Plugin // map[name]map[version]Plugin
}

// NewRegistry creates a new empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]map[string]Plugin),
	}
}

// Register adds a plugin to the registry.
// Returns an error if a plugin with the same name and version already exists.
func (r *Registry) Register(plugin Plugin) error {
	if plugin == nil {
		return fmt.Errorf("cannot register nil plugin")
	}

	metadata := plugin.Metadata()
	if err := metadata.Validate(); err != nil {
		return fmt.Errorf("invalid plugin metadata: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins[metadata.Name] == nil {
		r.plugins[metadata.Name] = make(map[string]Plugin)
	}
	if _, exists := r.plugins[metadata.Name][metadata.Version]; exists {
		return fmt.Errorf("plugin %s@%s already registered", metadata.Name, metadata.Version)
	}

	r.plugins[metadata.Name][metadata.Version] = plugin
	return nil
}

// GetLatest retrieves the highest registered version of a plugin by name.
func (r *Registry) GetLatest(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.plugins[name]
	if !ok || len(versions) == 0 {
		return nil, fmt.Errorf("plugin %s not found", name)
	}

	var best string
	for v := range versions {
		if best == "" || compareVersions(v, best) > 0 {
			best = v
		}
	}
	return versions[best], nil
}

// compareVersions orders dotted numeric versions with an optional "v" prefix.
// Non-numeric parts compare as strings.
func compareVersions(a, b string) int {
	pa := strings.Split(strings.TrimPrefix(a, "v"), ".")
	pb := strings.Split(strings.TrimPrefix(b, "v"), ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var x, y string
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		nx, errX := strconv.Atoi(x)
		ny, errY := strconv.Atoi(y)
		switch {
		case errX == nil && errY == nil && nx != ny:
			if nx < ny {
				return -1
			}
			return 1
		case (errX != nil || errY != nil) && x != y:
			return strings.Compare(x, y)
		}
	}
	return 0
}

// List returns all registered plugins ordered by name and version.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Plugin
	for _, versions := range r.plugins {
		for _, plugin := range versions {
			result = append(result, plugin)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i].Metadata(), result[j].Metadata()
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return compareVersions(a.Version, b.Version) < 0
	})
	return result
}

// Selection names an add-in to enable and its options.
type Selection struct {
	Name    string
	Options map[string]any
}

// Enable validates, initializes and registers the selected add-ins on w, in order.
// Unknown add-ins and missing required dependencies are configuration errors. The
// returned add-ins must be passed to Cleanup once the document is written.
func (r *Registry) Enable(pluginCtx *PluginContext, w *reflection.Writer, selections []Selection) ([]Plugin, error) {
	selected := make(map[string]bool, len(selections))
	for _, s := range selections {
		selected[s.Name] = true
	}

	var enabled []Plugin
	for _, s := range selections {
		p, err := r.GetLatest(s.Name)
		if err != nil {
			return enabled, errors.ConfigError("unknown add-in").
				WithContext("addin", s.Name).
				Build()
		}
		meta := p.Metadata()
		for _, dep := range meta.Dependencies {
			if !dep.Optional && !selected[dep.Name] {
				return enabled, errors.ConfigError("add-in dependency is not enabled").
					WithContext("addin", meta.Name).
					WithContext("dependency", dep.Name).
					Build()
			}
		}
		if err := p.Validate(s.Options); err != nil {
			return enabled, errors.WrapError(NewPluginError(meta.Name, "validate", err), errors.CategoryConfig, "invalid add-in options").
				WithContext("addin", meta.Name).
				Build()
		}
		if lc, ok := p.(PluginLifecycle); ok {
			if err := lc.Init(); err != nil {
				return enabled, NewPluginError(meta.Name, "init", err)
			}
		}
		if err := p.Register(pluginCtx.WithOptions(s.Options), w); err != nil {
			return enabled, NewPluginError(meta.Name, "register", err)
		}
		enabled = append(enabled, p)
		pluginCtx.Logger.Debug("Add-in enabled", logfields.AddIn(meta.Name), slog.String("version", meta.Version))
	}
	return enabled, nil
}

// Cleanup runs the cleanup hook of every enabled add-in. Failures are logged.
func Cleanup(pluginCtx *PluginContext, plugins []Plugin) {
	for _, p := range plugins {
		lc, ok := p.(PluginLifecycle)
		if !ok {
			continue
		}
		if err := lc.Cleanup(); err != nil {
			pluginCtx.Logger.Warn("Add-in cleanup failed", logfields.AddIn(p.Metadata().Name), logfields.Error(err))
		}
	}
}
