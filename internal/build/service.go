package build

import (
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/mrefbuilder/internal/config"
	"git.home.luguber.info/inful/mrefbuilder/internal/history"
	"git.home.luguber.info/inful/mrefbuilder/internal/metrics"
	"git.home.luguber.info/inful/mrefbuilder/internal/plugin"
	"git.home.luguber.info/inful/mrefbuilder/internal/plugin/extensionmethods"
)

// Stage names used for logging and metrics.
const (
	StageLoad     = "load"
	StageReflect  = "reflect"
	StageMerge    = "merge"
	StageManifest = "manifest"
	StageHistory  = "history"
)

// Request contains all inputs required to execute a build.
type Request struct {
	// Config is the loaded configuration for this build.
	Config *config.Config
}

// Result contains the outcome of a build execution.
type Result struct {
	// ID uniquely identifies the build.
	ID string

	Status BuildStatus

	// Output is the reflection data file.
	Output string

	// Manifest is the manifest file, empty when none was written.
	Manifest string

	Namespaces int
	Types      int
	Members    int

	MergedTypes   int
	MergedMembers int

	// AddIns lists the enabled add-ins in configuration order.
	AddIns []string

	// Warnings lists the stages that failed without failing the build.
	Warnings []string

	StartTime time.Time
	Duration  time.Duration
}

// BuildStatus represents the outcome of a build execution.
type BuildStatus string

const (
	// BuildStatusSuccess indicates every stage completed.
	BuildStatusSuccess BuildStatus = "success"

	// BuildStatusWarning indicates the reflection data was written but the manifest
	// or history stage failed.
	BuildStatusWarning BuildStatus = "warning"

	// BuildStatusFailed indicates the build encountered an error and left no output.
	BuildStatusFailed BuildStatus = "failed"

	// BuildStatusCancelled indicates the build was cancelled.
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsSuccess returns true if the reflection data file was written.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess || s == BuildStatusWarning
}

func (s BuildStatus) outcome() metrics.BuildOutcomeLabel {
	switch s {
	case BuildStatusSuccess:
		return metrics.BuildOutcomeSuccess
	case BuildStatusWarning:
		return metrics.BuildOutcomeWarning
	case BuildStatusCancelled:
		return metrics.BuildOutcomeCanceled
	default:
		return metrics.BuildOutcomeFailed
	}
}

// Service runs builds.
type Service struct {
	fs       afero.Fs
	logger   *slog.Logger
	recorder metrics.Recorder
	registry *plugin.Registry
	history  history.Store
	now      func() time.Time
}

// NewService creates a build service working on fs with the built-in add-ins.
func NewService(fs afero.Fs) *Service {
	return &Service{
		fs:       fs,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		registry: DefaultRegistry(),
		now:      time.Now,
	}
}

// WithLogger sets the logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithRecorder sets the metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithRegistry replaces the add-in registry.
func (s *Service) WithRegistry(r *plugin.Registry) *Service {
	if r != nil {
		s.registry = r
	}
	return s
}

// WithHistory records every build in store.
func (s *Service) WithHistory(store history.Store) *Service {
	s.history = store
	return s
}

// DefaultRegistry returns a registry holding the built-in add-ins.
func DefaultRegistry() *plugin.Registry {
	r := plugin.NewRegistry()
	// Built-in metadata is static and valid.
	_ = r.Register(extensionmethods.New())
	return r
}
