package pipeline

import (
	"time"

	"github.com/pgEdge/pgedge-starload/internal/logging"
)

// Observer is notified as phases start and finish. Progress UIs implement
// it; the default only logs.
type Observer interface {
	PhaseStarted(phase Phase)
	PhaseCompleted(phase Phase, elapsed time.Duration)
	PhaseFailed(phase Phase, err error)
}

// LogObserver logs phase transitions.
type LogObserver struct{}

// PhaseStarted implements Observer.
func (LogObserver) PhaseStarted(phase Phase) {
	l := logging.WithPhase(string(phase))
	l.Info().Msg("Phase started")
}

// PhaseCompleted implements Observer.
func (LogObserver) PhaseCompleted(phase Phase, elapsed time.Duration) {
	l := logging.WithPhase(string(phase))
	l.Info().Dur("elapsed", elapsed).Msg("Phase completed")
}

// PhaseFailed implements Observer.
func (LogObserver) PhaseFailed(phase Phase, err error) {
	l := logging.WithPhase(string(phase))
	l.Error().Err(err).Msg("Phase failed")
}

// multiObserver fans notifications out to several observers in order.
type multiObserver []Observer

func (m multiObserver) PhaseStarted(phase Phase) {
	for _, o := range m {
		o.PhaseStarted(phase)
	}
}

func (m multiObserver) PhaseCompleted(phase Phase, elapsed time.Duration) {
	for _, o := range m {
		o.PhaseCompleted(phase, elapsed)
	}
}

func (m multiObserver) PhaseFailed(phase Phase, err error) {
	for _, o := range m {
		o.PhaseFailed(phase, err)
	}
}
