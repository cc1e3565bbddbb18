// Package config loads and validates the mrefbuilder configuration file.
package config

import (
	"bytes"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mrefbuilder/internal/apifilter"
	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
)

// CurrentVersion is the configuration format version written by Init.
const CurrentVersion = "1.0"

// DefaultFile is the configuration file looked up when --config is not given.
const DefaultFile = "mrefbuilder.yaml"

// Config is the complete build configuration.
type Config struct {
	Version     string        `yaml:"version"`
	Inputs      InputsConfig  `yaml:"inputs"`
	Output      OutputConfig  `yaml:"output"`
	Source      SourceConfig  `yaml:"source,omitempty"`
	Filter      FilterConfig  `yaml:"filter,omitempty"`
	MemberOrder MemberOrder   `yaml:"member_order,omitempty"`
	AddIns      []AddInConfig `yaml:"addins,omitempty"`
	Logging     LoggingConfig `yaml:"logging,omitempty"`
	Metrics     MetricsConfig `yaml:"metrics,omitempty"`
	History     HistoryConfig `yaml:"history,omitempty"`

	// dir is the directory of the loaded file; relative paths are resolved against it.
	dir string
}

// InputsConfig lists the metadata description files. Assemblies are documented;
// references only resolve types.
type InputsConfig struct {
	Assemblies []string `yaml:"assemblies"`
	References []string `yaml:"references,omitempty"`
}

// OutputConfig controls the reflection file and its companions.
type OutputConfig struct {
	File            string `yaml:"file"`
	MergeDuplicates *bool  `yaml:"merge_duplicates,omitempty"`
	Manifest        *bool  `yaml:"manifest,omitempty"`
}

// ShouldMerge reports whether duplicate API entries are merged after writing.
func (o OutputConfig) ShouldMerge() bool { return o.MergeDuplicates == nil || *o.MergeDuplicates }

// ShouldWriteManifest reports whether a build manifest is written next to the output.
func (o OutputConfig) ShouldWriteManifest() bool { return o.Manifest == nil || *o.Manifest }

// SourceConfig locates source files for source contexts.
type SourceConfig struct {
	BasePath             string `yaml:"base_path,omitempty"`
	WarnOnMissingContext bool   `yaml:"warn_on_missing_context,omitempty"`
}

// FilterConfig selects the documented API surface. Unset flags keep the
// apifilter defaults.
type FilterConfig struct {
	IncludePrivate                          *bool    `yaml:"include_private,omitempty"`
	IncludeInternal                         *bool    `yaml:"include_internal,omitempty"`
	IncludeProtected                        *bool    `yaml:"include_protected,omitempty"`
	ProtectedInternalAsProtected            *bool    `yaml:"protected_internal_as_protected,omitempty"`
	IncludePrivateFields                    *bool    `yaml:"include_private_fields,omitempty"`
	IncludeExplicitInterfaceImplementations *bool    `yaml:"include_explicit_interface_implementations,omitempty"`
	IncludeAttributes                       *bool    `yaml:"include_attributes,omitempty"`
	Exclude                                 []string `yaml:"exclude,omitempty"`
	ExcludedAttributes                      []string `yaml:"excluded_attributes,omitempty"`
}

// Options converts the filter settings to apifilter options.
func (f FilterConfig) Options() apifilter.Options {
	opts := apifilter.DefaultOptions()
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&opts.IncludePrivate, f.IncludePrivate)
	set(&opts.IncludeInternal, f.IncludeInternal)
	set(&opts.IncludeProtected, f.IncludeProtected)
	set(&opts.ProtectedInternalAsProtected, f.ProtectedInternalAsProtected)
	set(&opts.IncludePrivateFields, f.IncludePrivateFields)
	set(&opts.IncludeExplicitInterfaceImplementations, f.IncludeExplicitInterfaceImplementations)
	set(&opts.IncludeAttributes, f.IncludeAttributes)
	opts.Exclude = append(opts.Exclude, f.Exclude...)
	opts.ExcludedAttributes = append(opts.ExcludedAttributes, f.ExcludedAttributes...)
	return opts
}

// AddInConfig enables one add-in with its options.
type AddInConfig struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:"options,omitempty"`
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// MetricsConfig enables writing Prometheus metrics to a textfile after each build.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// HistoryConfig enables the build history database.
type HistoryConfig struct {
	Database string `yaml:"database,omitempty"`
	// Keep is the number of builds retained; 0 keeps all.
	Keep int `yaml:"keep,omitempty"`
}

// Load reads a configuration file. Environment variables are loaded from .env files
// next to it, ${VAR} references are expanded, defaults are applied, relative paths are
// resolved against the file's directory and the result is validated.
func Load(configPath string) (*Config, error) {
	dir := filepath.Dir(configPath)
	if err := loadEnvFiles(dir); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid configuration").
			WithContext("path", configPath).
			Build()
	}
	cfg.resolvePaths(dir)
	return cfg, nil
}

// Parse decodes, defaults and validates configuration data. Relative paths are left
// as written.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse configuration").Build()
	}

	if cfg.Version != CurrentVersion {
		return nil, errors.ConfigError("unsupported configuration version").
			WithContext("version", cfg.Version).
			WithContext("expected", CurrentVersion).
			Build()
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Dir returns the directory the configuration was loaded from.
func (c *Config) Dir() string { return c.dir }

func (c *Config) resolvePaths(dir string) {
	c.dir = dir
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, p := range c.Inputs.Assemblies {
		c.Inputs.Assemblies[i] = abs(p)
	}
	for i, p := range c.Inputs.References {
		c.Inputs.References[i] = abs(p)
	}
	c.Output.File = abs(c.Output.File)
	c.Source.BasePath = abs(c.Source.BasePath)
	c.Metrics.Textfile = abs(c.Metrics.Textfile)
	c.History.Database = abs(c.History.Database)
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	merge := true
	example := Config{
		Version: CurrentVersion,
		Inputs: InputsConfig{
			Assemblies: []string{"metadata/Contoso.Widgets.yaml"},
			References: []string{"metadata/references"},
		},
		Output: OutputConfig{
			File:            "build/reflection.xml",
			MergeDuplicates: &merge,
		},
		Source: SourceConfig{
			BasePath: "src",
		},
		Filter: FilterConfig{
			Exclude: []string{"N:Contoso.Widgets.Internal"},
		},
		MemberOrder: MemberOrderDeclaration,
		AddIns: []AddInConfig{
			{Name: "extension-methods"},
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
		Metrics: MetricsConfig{
			Textfile: "${MREFBUILDER_METRICS_TEXTFILE}",
		},
		History: HistoryConfig{
			Database: ".mrefbuilder/history.db",
			Keep:     100,
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
