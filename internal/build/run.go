package build

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/mrefbuilder/internal/apifilter"
	"git.home.luguber.info/inful/mrefbuilder/internal/config"
	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/mrefbuilder/internal/history"
	"git.home.luguber.info/inful/mrefbuilder/internal/loader"
	"git.home.luguber.info/inful/mrefbuilder/internal/logfields"
	"git.home.luguber.info/inful/mrefbuilder/internal/manifest"
	"git.home.luguber.info/inful/mrefbuilder/internal/merge"
	"git.home.luguber.info/inful/mrefbuilder/internal/metrics"
	"git.home.luguber.info/inful/mrefbuilder/internal/namer"
	"git.home.luguber.info/inful/mrefbuilder/internal/plugin"
	"git.home.luguber.info/inful/mrefbuilder/internal/reflection"
	"git.home.luguber.info/inful/mrefbuilder/internal/sourcecontext"
)

// run is the state of one build.
type run struct {
	cfg    *config.Config
	res    *Result
	logger *slog.Logger

	documented []string
	references []string
	loaded     *loader.Result
	addIns     []plugin.PluginMetadata
}

// Run executes the complete build pipeline: load, reflect, merge, manifest, history.
// A failure in the first three stages removes the output file and fails the build.
// Manifest and history failures are logged and downgrade the status to warning.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{ID: uuid.NewString(), StartTime: s.now()}
	logger := s.logger.With(logfields.BuildID(res.ID))

	if req.Config == nil {
		return s.finish(ctx, nil, res, BuildStatusFailed, errors.ConfigError("config required").Build())
	}
	r := &run{cfg: req.Config, res: res, logger: logger}
	res.Output = r.cfg.Output.File
	logger.Info("Build started", logfields.File(res.Output))

	if err := s.stage(ctx, r, StageLoad, true, func() error { return s.load(ctx, r) }); err != nil {
		return s.abort(ctx, r, err)
	}
	if err := s.stage(ctx, r, StageReflect, true, func() error { return s.reflect(ctx, r) }); err != nil {
		return s.abort(ctx, r, err)
	}
	if r.cfg.Output.ShouldMerge() {
		if err := s.stage(ctx, r, StageMerge, true, func() error { return s.merge(ctx, r) }); err != nil {
			return s.abort(ctx, r, err)
		}
	}

	status := BuildStatusSuccess
	if r.cfg.Output.ShouldWriteManifest() {
		if err := s.stage(ctx, r, StageManifest, false, func() error { return s.writeManifest(r) }); err != nil {
			if ctx.Err() != nil {
				return s.abort(ctx, r, err)
			}
			status = BuildStatusWarning
			res.Warnings = append(res.Warnings, StageManifest)
		}
	}
	return s.finish(ctx, r, res, status, nil)
}

// stage runs fn, timing it and recording its result.
func (s *Service) stage(ctx context.Context, r *run, name string, fatal bool, fn func() error) error {
	if err := ctx.Err(); err != nil {
		s.recorder.IncStageResult(name, metrics.ResultCanceled)
		return err
	}
	start := time.Now()
	err := fn()
	d := time.Since(start)
	s.recorder.ObserveStageDuration(name, d)

	switch {
	case err == nil:
		s.recorder.IncStageResult(name, metrics.ResultSuccess)
		r.logger.Debug("Stage complete", logfields.Stage(name), logfields.DurationMS(float64(d.Milliseconds())))
	case ctx.Err() != nil:
		s.recorder.IncStageResult(name, metrics.ResultCanceled)
	case fatal:
		s.recorder.IncStageResult(name, metrics.ResultFatal)
		r.logger.Error("Stage failed", logfields.Stage(name), logfields.Error(err))
	default:
		s.recorder.IncStageResult(name, metrics.ResultWarning)
		r.logger.Warn("Stage failed", logfields.Stage(name), logfields.Error(err))
	}
	return err
}

// abort removes the partial output and fails or cancels the build.
func (s *Service) abort(ctx context.Context, r *run, err error) (*Result, error) {
	if rmErr := s.fs.Remove(r.cfg.Output.File); rmErr != nil && !os.IsNotExist(rmErr) {
		r.logger.Warn("Failed to remove partial output", logfields.Path(r.cfg.Output.File), logfields.Error(rmErr))
	}
	status := BuildStatusFailed
	if ctx.Err() != nil || stderrors.Is(err, context.Canceled) {
		status = BuildStatusCancelled
	}
	return s.finish(ctx, r, r.res, status, err)
}

// finish records the build in the history and the metrics.
func (s *Service) finish(ctx context.Context, r *run, res *Result, status BuildStatus, err error) (*Result, error) {
	res.Status = status
	res.Duration = s.now().Sub(res.StartTime)

	if r != nil && s.history != nil {
		// Cancelled builds are recorded as well.
		hctx := context.WithoutCancel(ctx)
		if herr := s.stage(hctx, r, StageHistory, false, func() error { return s.record(hctx, r, err) }); herr != nil && status == BuildStatusSuccess {
			res.Status = BuildStatusWarning
			res.Warnings = append(res.Warnings, StageHistory)
		}
	}

	s.recorder.ObserveBuildDuration(res.Duration)
	s.recorder.IncBuildOutcome(res.Status.outcome())

	logger := s.logger.With(logfields.BuildID(res.ID))
	attrs := []any{logfields.Status(string(res.Status)), logfields.DurationMS(float64(res.Duration.Milliseconds()))}
	switch {
	case err != nil:
		logger.Error("Build failed", append(attrs, logfields.Error(err))...)
	case res.Status == BuildStatusWarning:
		logger.Warn("Build finished with warnings", append(attrs, slog.Any("stages", res.Warnings))...)
	default:
		logger.Info("Build finished", append(attrs,
			slog.Int("types", res.Types),
			slog.Int("members", res.Members))...)
	}
	return res, err
}

func (s *Service) load(ctx context.Context, r *run) error {
	var err error
	if r.documented, err = expandInputs(s.fs, r.cfg.Inputs.Assemblies); err != nil {
		return err
	}
	if r.references, err = expandInputs(s.fs, r.cfg.Inputs.References); err != nil {
		return err
	}
	if len(r.documented) == 0 {
		return errors.ConfigError("no metadata description files to document").Build()
	}
	r.loaded, err = loader.New(s.fs).WithLogger(r.logger).Load(ctx, r.documented, r.references)
	if err != nil {
		return err
	}
	r.logger.Info("Loaded metadata",
		slog.Int("assemblies", len(r.loaded.Assemblies)),
		slog.Int("references", len(r.loaded.References)))
	return nil
}

func (s *Service) reflect(ctx context.Context, r *run) error {
	out := r.cfg.Output.File
	if err := s.fs.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", out).
			Build()
	}
	f, err := s.fs.Create(out)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create output file").
			WithContext("path", out).
			Build()
	}

	w := reflection.New(f, apifilter.New(r.cfg.Filter.Options()), namer.NewDocIDNamer()).
		WithLogger(r.logger).
		WithMemberOrder(reflection.MemberOrder(r.cfg.MemberOrder))
	if base := r.cfg.Source.BasePath; base != "" {
		w.WithSourceResolver(sourcecontext.New(s.fs, base).
			WithLogger(r.logger).
			WithWarnOnMissing(r.cfg.Source.WarnOnMissingContext))
	}

	pluginCtx := plugin.NewPluginContext(ctx, r.logger, r.res.ID)
	enabled, err := s.registry.Enable(pluginCtx, w, selections(r.cfg.AddIns))
	defer plugin.Cleanup(pluginCtx, enabled)
	if err != nil {
		_ = f.Close()
		return err
	}
	for _, p := range enabled {
		meta := p.Metadata()
		r.addIns = append(r.addIns, meta)
		r.res.AddIns = append(r.res.AddIns, meta.Name)
	}

	writeErr := w.Write(r.loaded.Assemblies)
	closeErr := w.Close()
	fileErr := f.Close()
	switch {
	case writeErr != nil:
		return writeErr
	case closeErr != nil:
		return closeErr
	case fileErr != nil:
		return errors.WrapError(fileErr, errors.CategoryFileSystem, "failed to close output file").
			WithContext("path", out).
			Build()
	}

	counts := w.Counts()
	r.res.Namespaces, r.res.Types, r.res.Members = counts.Namespaces, counts.Types, counts.Members
	s.recorder.SetAPICounts(counts.Namespaces, counts.Types, counts.Members)
	return nil
}

func selections(addIns []config.AddInConfig) []plugin.Selection {
	out := make([]plugin.Selection, 0, len(addIns))
	for _, a := range addIns {
		out = append(out, plugin.Selection{Name: a.Name, Options: a.Options})
	}
	return out
}

func (s *Service) merge(ctx context.Context, r *run) error {
	merged, err := merge.New(s.fs).WithLogger(r.logger).Merge(ctx, r.cfg.Output.File)
	if err != nil {
		return err
	}
	r.res.MergedTypes, r.res.MergedMembers = merged.MergedTypes, merged.MergedMembers
	s.recorder.AddMerged(merged.MergedTypes, merged.MergedMembers)
	return nil
}

func (s *Service) writeManifest(r *run) error {
	m := &manifest.BuildManifest{
		ID:        r.res.ID,
		Timestamp: r.res.StartTime.UTC(),
		Inputs:    manifest.Inputs{ConfigHash: r.cfg.Snapshot()},
		Status:    string(BuildStatusSuccess),
		Duration:  s.now().Sub(r.res.StartTime).Milliseconds(),
	}
	for _, group := range []struct {
		role  string
		paths []string
	}{{manifest.RoleAssembly, r.documented}, {manifest.RoleReference, r.references}} {
		for _, p := range group.paths {
			sum, err := manifest.HashFile(s.fs, p)
			if err != nil {
				return err
			}
			m.Inputs.Files = append(m.Inputs.Files, manifest.FileInput{Path: p, Role: group.role, SHA256: sum})
		}
	}

	rev, err := manifest.SourceRevision(r.cfg.Source.BasePath)
	if err != nil {
		return err
	}
	m.Inputs.SourceRevision = rev

	for _, meta := range r.addIns {
		m.AddIns = append(m.AddIns, manifest.PluginVersion{Name: meta.Name, Version: meta.Version, Type: meta.Type.String()})
	}

	out := r.cfg.Output.File
	sum, err := manifest.HashFile(s.fs, out)
	if err != nil {
		return err
	}
	m.Outputs = manifest.Outputs{
		File:          out,
		SHA256:        sum,
		Namespaces:    r.res.Namespaces,
		Types:         r.res.Types,
		Members:       r.res.Members,
		MergedTypes:   r.res.MergedTypes,
		MergedMembers: r.res.MergedMembers,
	}

	path := manifest.PathFor(out)
	if err := manifest.Write(s.fs, path, m); err != nil {
		return err
	}
	r.res.Manifest = path
	return nil
}

func (s *Service) record(ctx context.Context, r *run, buildErr error) error {
	rec := history.Record{
		ID:            r.res.ID,
		StartedAt:     r.res.StartTime,
		Duration:      r.res.Duration,
		Status:        string(r.res.Status),
		Output:        r.res.Output,
		ConfigHash:    r.cfg.Snapshot(),
		AddIns:        r.res.AddIns,
		Namespaces:    r.res.Namespaces,
		Types:         r.res.Types,
		Members:       r.res.Members,
		MergedTypes:   r.res.MergedTypes,
		MergedMembers: r.res.MergedMembers,
	}
	if buildErr != nil {
		rec.Error = buildErr.Error()
	}
	if err := s.history.Append(ctx, rec); err != nil {
		return err
	}
	if keep := r.cfg.History.Keep; keep > 0 {
		if _, err := s.history.Prune(ctx, keep); err != nil {
			return err
		}
	}
	return nil
}
