package devotion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Summary is the view recomputed from the latest snapshots. The prayers
// and invocations subscriptions arrive independently, so either half may
// still be missing; the Loaded flags say which halves are present.
type Summary struct {
	Window            Window       `json:"window"`
	Prayers           []Prayer     `json:"prayers"`
	Invocations       []Invocation `json:"invocations"`
	Totals            Totals       `json:"totals"`
	Earned            []Badge      `json:"earned"`
	PrayersLoaded     bool         `json:"prayers_loaded"`
	InvocationsLoaded bool         `json:"invocations_loaded"`
}

// Summarize filters both snapshots to the last days days and evaluates the
// badge table over the result.
func (s *Service) Summarize(prayers []Prayer, invocations []Invocation, days int) Summary {
	window := PeriodWindow(s.now(), days)
	filteredPrayers := FilterByWindow(prayers, window)
	filteredInvocations := FilterByWindow(invocations, window)
	totals := Tally(filteredPrayers, filteredInvocations)

	return Summary{
		Window:      window,
		Prayers:     filteredPrayers,
		Invocations: filteredInvocations,
		Totals:      totals,
		Earned:      EarnedBadges(totals.TotalPrayers, totals.TotalInvocations, s.badges),
	}
}

// Watch subscribes to the user's prayers and invocations and calls fn with a
// fresh Summary every time either snapshot changes. fn is never called
// concurrently. Watch returns nil once ctx is cancelled.
func (s *Service) Watch(ctx context.Context, userID string, days int, fn func(Summary)) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if days < 1 {
		return fmt.Errorf("%w: days must be positive", ErrInvalidInput)
	}
	if fn == nil {
		return errors.New("watch callback is required")
	}

	var (
		mu                sync.Mutex
		prayers           []Prayer
		invocations       []Invocation
		prayersLoaded     bool
		invocationsLoaded bool
	)

	publish := func() {
		summary := s.Summarize(prayers, invocations, days)
		summary.PrayersLoaded = prayersLoaded
		summary.InvocationsLoaded = invocationsLoaded
		s.recorder.SummaryComputed(len(summary.Earned))
		fn(summary)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.repo.SubscribePrayers(gctx, userID, func(snapshot []Prayer) {
			s.recorder.SnapshotReceived("prayers")
			mu.Lock()
			defer mu.Unlock()
			prayers, prayersLoaded = snapshot, true
			publish()
		})
	})

	g.Go(func() error {
		return s.repo.SubscribeInvocations(gctx, userID, func(snapshot []Invocation) {
			s.recorder.SnapshotReceived("invocations")
			mu.Lock()
			defer mu.Unlock()
			invocations, invocationsLoaded = snapshot, true
			publish()
		})
	})

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}
