package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

// Outbound calls to these hosts carry trace headers.
var tracePropagationTargets = []string{
	"api.stripe.com",
	"api.resend.com",
	"api.postmarkapp.com",
}

// countingTransport records one http.client.requests metric per call,
// labelled with the provider and the status class.
type countingTransport struct {
	base    http.RoundTripper
	service string
}

func (t countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)

	outcome := "error"
	if err == nil {
		outcome = fmt.Sprintf("%dxx", resp.StatusCode/100)
	}
	MeterFromContext(req.Context()).Count("http.client.requests", 1, sentry.WithAttributes(
		attribute.String("peer.service", t.service),
		attribute.String("http.status_class", outcome),
	))
	return resp, err
}

// NewHTTPClient returns a traced, counted client for one outbound provider
// such as "stripe" or "email".
func NewHTTPClient(service string, timeout time.Duration) *http.Client {
	transport := sentryhttpclient.NewSentryRoundTripper(
		countingTransport{base: http.DefaultTransport, service: service},
		sentryhttpclient.WithTracePropagationTargets(tracePropagationTargets),
	)
	client := &http.Client{Transport: transport}
	if timeout > 0 {
		client.Timeout = timeout
	}
	return client
}
