// Package observability carries request-scoped Sentry meters and traces
// outbound calls to the payment and email APIs.
package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
)

type meterKey struct{}

// WithMeter starts a meter whose metrics all carry attrs and stores it in
// the returned context.
func WithMeter(ctx context.Context, attrs ...attribute.Builder) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	meter := sentry.NewMeter(ctx).WithCtx(ctx)
	if len(attrs) > 0 {
		meter.SetAttributes(attrs...)
	}
	return context.WithValue(ctx, meterKey{}, meter)
}

// MeterFromContext returns the meter stored by WithMeter. Work running
// outside a request, such as cart sync pushes, gets an unattributed meter.
func MeterFromContext(ctx context.Context) sentry.Meter {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter, ok := ctx.Value(meterKey{}).(sentry.Meter); ok && meter != nil {
		return meter.WithCtx(ctx)
	}
	return sentry.NewMeter(ctx).WithCtx(ctx)
}
