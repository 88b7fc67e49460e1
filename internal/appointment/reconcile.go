package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReconcileStale completes confirmed appointments whose consultation has
// ended. proID narrows the sweep to one professional; nil sweeps everyone.
//
// The periodic worker and the page-load endpoint both call this. Running it
// concurrently is safe: the loser of each conditional write skips the row, so
// every appointment is counted once across all callers.
func (s *Service) ReconcileStale(ctx context.Context, proID *uuid.UUID) (int, error) {
	start := time.Now()

	candidates, err := s.repo.FindElapsedConfirmed(ctx, s.clock(), proID)
	if err != nil {
		return 0, fmt.Errorf("find elapsed confirmed appointments: %w", err)
	}

	transitioned := 0
	var errs []error
	for _, appt := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		_, changed, err := s.apply(ctx, appt, SystemActor, ActionElapse, Payload{})
		if err != nil {
			var invalidErr *InvalidTransitionError
			if errors.As(err, &invalidErr) {
				// Another sweep or an actor got there first.
				s.log.Debug().Str("appointment_id", appt.ID.String()).Msg("skip reconciled appointment")
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to complete appointment")
			errs = append(errs, fmt.Errorf("complete %s: %w", appt.ID, err))
			continue
		}
		if changed {
			transitioned++
		}
	}

	ev := s.log.Info()
	if transitioned == 0 {
		ev = s.log.Debug()
	}
	ev.Int("candidates", len(candidates)).
		Int("transitioned", transitioned).
		Dur("took", time.Since(start)).
		Msg("stale appointment sweep")

	return transitioned, errors.Join(errs...)
}
