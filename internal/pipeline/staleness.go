package pipeline

import (
	"context"
	"fmt"
	"time"
)

// SourceTimes reports when the raw extracts last changed.
// *extract.Reader satisfies it.
type SourceTimes interface {
	LatestModTime() (time.Time, error)
}

// LastLoadFunc returns the time of the last committed load, with false when
// nothing has been loaded yet.
type LastLoadFunc func(ctx context.Context) (time.Time, bool, error)

// Freshness explains a rebuild decision.
type Freshness struct {
	Rebuild      bool
	Reason       string
	SourcesAt    time.Time
	LastLoadedAt time.Time
}

// CheckFreshness decides whether the star schema must be rebuilt: it is
// stale when nothing was loaded yet or any source changed after the last load.
func CheckFreshness(ctx context.Context, sources SourceTimes, lastLoad LastLoadFunc) (*Freshness, error) {
	sourcesAt, err := sources.LatestModTime()
	if err != nil {
		return nil, fmt.Errorf("failed to stat sources: %w", err)
	}

	loadedAt, ok, err := lastLoad(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last load time: %w", err)
	}

	f := &Freshness{SourcesAt: sourcesAt, LastLoadedAt: loadedAt}
	switch {
	case !ok:
		f.Rebuild, f.Reason = true, "no previous load recorded"
	case sourcesAt.After(loadedAt):
		f.Rebuild, f.Reason = true, "sources changed since last load"
	default:
		f.Reason = "star schema is up to date"
	}
	return f, nil
}
