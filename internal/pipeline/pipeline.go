//-------------------------------------------------------------------------
//
// pgEdge Star Schema Loader
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline sequences the extract, transform, build and load phases
// of one star schema rebuild.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pgEdge/pgedge-starload/internal/model"
	"github.com/pgEdge/pgedge-starload/internal/star"
	"github.com/pgEdge/pgedge-starload/internal/transform"
	"github.com/pgEdge/pgedge-starload/internal/warehouse"
)

// Phase names one step of the pipeline.
type Phase string

// Pipeline phases in execution order.
const (
	PhaseExtract   Phase = "extract"
	PhaseTransform Phase = "transform"
	PhaseBuild     Phase = "build"
	PhaseLoad      Phase = "load"
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseExtract, PhaseTransform, PhaseBuild, PhaseLoad}

// PhaseError reports which phase failed.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Source reads every raw extract. *extract.Reader satisfies it.
type Source interface {
	ReadAll(ctx context.Context) (model.RawSet, error)
}

// Store loads star tables atomically. *warehouse.Loader satisfies it.
type Store interface {
	Load(ctx context.Context, ddl string, tables []warehouse.Table) (*warehouse.LoadResult, error)
}

// Config holds pipeline options.
type Config struct {
	// ParallelTransform runs the source cleaners concurrently.
	ParallelTransform bool

	// MaxUnresolvedRatio fails the build phase when a fact foreign-key
	// column has a larger share of nil keys. Zero disables the check.
	MaxUnresolvedRatio float64
}

// Report collects the observable outcome of a run.
type Report struct {
	Transform  *transform.Report
	Dimensions []*star.DimensionReport
	Fact       *star.FactReport
	Load       *warehouse.LoadResult
	Elapsed    map[Phase]time.Duration
}

// Pipeline runs one rebuild. It holds no data between runs.
type Pipeline struct {
	source   Source
	store    Store
	cfg      Config
	observer Observer
}

// New creates a pipeline. Observers are notified in addition to logging.
func New(source Source, store Store, cfg Config, observers ...Observer) *Pipeline {
	obs := multiObserver{LogObserver{}}
	obs = append(obs, observers...)
	return &Pipeline{source: source, store: store, cfg: cfg, observer: obs}
}

// Run executes every phase in order. On failure it returns the partial
// report and a *PhaseError; later phases do not run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{Elapsed: make(map[Phase]time.Duration, len(Phases))}

	raw, err := timed(report, PhaseExtract, func() (model.RawSet, error) {
		return p.Extract(ctx)
	})
	if err != nil {
		return report, err
	}

	cleaned, err := timed(report, PhaseTransform, func() (*model.Cleaned, error) {
		c, r, err := p.Transform(ctx, raw)
		report.Transform = r
		return c, err
	})
	if err != nil {
		return report, err
	}

	schema, err := timed(report, PhaseBuild, func() (*star.Schema, error) {
		return p.Build(ctx, cleaned)
	})
	if schema != nil {
		report.Dimensions = schema.Dimensions
		report.Fact = schema.Report
	}
	if err != nil {
		return report, err
	}

	report.Load, err = timed(report, PhaseLoad, func() (*warehouse.LoadResult, error) {
		return p.Load(ctx, schema)
	})
	return report, err
}

// Extract reads every source. A missing source fails before any
// transformation runs.
func (p *Pipeline) Extract(ctx context.Context) (model.RawSet, error) {
	return phase(p, PhaseExtract, func() (model.RawSet, error) {
		return p.source.ReadAll(ctx)
	})
}

// Transform cleans every raw source.
func (p *Pipeline) Transform(ctx context.Context, raw model.RawSet) (*model.Cleaned, *transform.Report, error) {
	var report *transform.Report
	cleaned, err := phase(p, PhaseTransform, func() (*model.Cleaned, error) {
		c, r, err := transform.CleanAll(ctx, raw, transform.Options{Parallel: p.cfg.ParallelTransform})
		report = r
		return c, err
	})
	return cleaned, report, err
}

// Build derives the dimensions and the fact table.
func (p *Pipeline) Build(ctx context.Context, cleaned *model.Cleaned) (*star.Schema, error) {
	return phase(p, PhaseBuild, func() (*star.Schema, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return star.Build(cleaned, star.Options{MaxUnresolvedRatio: p.cfg.MaxUnresolvedRatio})
	})
}

// Load replaces the persisted star schema in one transaction.
func (p *Pipeline) Load(ctx context.Context, schema *star.Schema) (*warehouse.LoadResult, error) {
	return phase(p, PhaseLoad, func() (*warehouse.LoadResult, error) {
		return p.store.Load(ctx, warehouse.SchemaSQL, warehouse.Tables(schema))
	})
}

// phase notifies the observer around fn and wraps its error.
func phase[T any](p *Pipeline, name Phase, fn func() (T, error)) (T, error) {
	p.observer.PhaseStarted(name)
	start := time.Now()

	out, err := fn()
	if err != nil {
		err = &PhaseError{Phase: name, Err: err}
		p.observer.PhaseFailed(name, err)
		return out, err
	}

	p.observer.PhaseCompleted(name, time.Since(start))
	return out, nil
}

// timed records how long fn took in the report.
func timed[T any](report *Report, name Phase, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	report.Elapsed[name] = time.Since(start)
	return out, err
}
