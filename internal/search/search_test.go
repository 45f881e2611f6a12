package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func newOrchestrator(permanent airfare.KindSet) (Orchestrator, *chrono.Manual) {
	clock := chrono.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewOrchestrator("cash", permanent, clock, &telemetry.Recorder{}), clock
}

func TestRunRetriesThenSurfacesLastError(t *testing.T) {
	o, clock := newOrchestrator(CashPermanent)

	calls := 0
	_, err := Run(context.Background(), o, func(ctx context.Context) (int, error) {
		calls++
		if calls == 3 {
			return 0, airfare.Errorf(airfare.KindNoResults, "third")
		}
		return 0, airfare.Errorf(airfare.KindNavigationFailed, "attempt %d", calls)
	})
	require.Equal(t, 3, calls)
	require.Equal(t, airfare.KindNoResults, airfare.KindOf(err))
	require.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second}, clock.Sleeps())
}

func TestRunSucceedsOnRetry(t *testing.T) {
	o, clock := newOrchestrator(CashPermanent)

	calls := 0
	result, err := Run(context.Background(), o, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("flaky")
		}
		return "ok", nil
	})
	require.Nil(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, []time.Duration{3 * time.Second}, clock.Sleeps())
}

func TestRunPermanentShortCircuits(t *testing.T) {
	table := []struct {
		name      string
		permanent airfare.KindSet
		kind      airfare.Kind
		calls     int
	}{
		{name: "cash captcha", permanent: CashPermanent, kind: airfare.KindCaptchaDetected, calls: 1},
		{name: "cash auth", permanent: CashPermanent, kind: airfare.KindAuthRequired, calls: 1},
		{name: "award captcha retried", permanent: AwardPermanent, kind: airfare.KindCaptchaDetected, calls: 3},
		{name: "award expired", permanent: AwardPermanent, kind: airfare.KindAuthExpired, calls: 1},
		{name: "marketplace input", permanent: MarketplacePermanent, kind: airfare.KindInvalidInput, calls: 1},
		{name: "marketplace api", permanent: MarketplacePermanent, kind: airfare.KindAPIError, calls: 3},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			o, _ := newOrchestrator(test.permanent)
			calls := 0
			_, err := Run(context.Background(), o, func(ctx context.Context) (int, error) {
				calls++
				return 0, airfare.Errorf(test.kind, "failed")
			})
			require.Equal(t, test.calls, calls)
			require.Equal(t, test.kind, airfare.KindOf(err))
		})
	}
}

func TestRunCancelledWhileWaiting(t *testing.T) {
	o, _ := newOrchestrator(CashPermanent)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Run(ctx, o, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("failed")
	})
	require.Equal(t, 1, calls)
	require.Equal(t, airfare.KindTimeout, airfare.KindOf(err))
}
