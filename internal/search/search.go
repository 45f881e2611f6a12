// Package search runs a source's search attempts under a bounded retry
// policy.
package search

import (
	"context"
	"time"

	"milesfare-backend/internal/airfare"
	"milesfare-backend/internal/components/assert"
	"milesfare-backend/internal/components/chrono"
	"milesfare-backend/internal/components/telemetry"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("milesfare.internal.search")

const (
	report_orchestrator_attempt = "orchestrator.attempt"
	report_orchestrator_wait    = "orchestrator.wait"
)

const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 3 * time.Second
)

var (
	CashPermanent = airfare.NewKindSet(
		airfare.KindInvalidInput,
		airfare.KindCaptchaDetected,
		airfare.KindAuthRequired,
		airfare.KindAuthExpired,
	)
	AwardPermanent = airfare.NewKindSet(
		airfare.KindInvalidInput,
		airfare.KindAuthRequired,
		airfare.KindAuthExpired,
	)
	MarketplacePermanent = airfare.NewKindSet(airfare.KindInvalidInput)
)

type Orchestrator struct {
	Name       string
	MaxRetries int
	BaseDelay  time.Duration
	// Permanent kinds are returned after the attempt that raised them.
	Permanent airfare.KindSet
	Clock     chrono.API
	Tel       telemetry.API
}

func NewOrchestrator(name string, permanent airfare.KindSet, clock chrono.API, tel telemetry.API) Orchestrator {
	assert.NotEmptyStr(name)
	assert.NotNil(clock)
	assert.NotNil(tel)
	return Orchestrator{
		Name:       name,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Permanent:  permanent,
		Clock:      clock,
		Tel:        telemetry.NewScopedAPI(name, tel),
	}
}

func (o Orchestrator) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = o.BaseDelay << o.MaxRetries
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run calls attempt up to MaxRetries+1 times, sleeping BaseDelay*2^(n-1)
// before the n-th retry. Each attempt owns whatever session it opens.
func Run[T any](ctx context.Context, o Orchestrator, attempt func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	schedule := o.schedule()

	for n := 0; n <= o.MaxRetries; n++ {
		if n > 0 {
			delay := schedule.NextBackOff()
			o.Tel.ReportDebug("retrying", n, delay)
			err := o.Clock.Sleep(ctx, delay)
			if err != nil {
				o.Tel.ReportWarning(report_orchestrator_wait, err)
				return zero, airfare.Wrap(airfare.KindTimeout, o.Name+" search cancelled", lastErr)
			}
		}

		result, err := runAttempt(ctx, o, n+1, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err
		o.Tel.ReportWarning(report_orchestrator_attempt, n+1, err)

		if o.Permanent.Has(err) {
			return zero, err
		}
	}

	if lastErr == nil {
		return zero, airfare.Errorf(airfare.KindTimeout, "%s search failed after %d attempts", o.Name, o.MaxRetries+1)
	}
	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, o Orchestrator, n int, attempt func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, o.Name+".attempt")
	defer span.End()
	span.SetAttributes(attribute.Int("attempt", n))

	result, err := attempt(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(airfare.KindOf(err)))
	}
	return result, err
}
