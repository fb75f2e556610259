package llm

import (
	"context"
	"errors"
	"time"

	"github.com/snarg/mockprep/internal/metrics"
)

type instrumented struct {
	Provider
}

// Instrument wraps p so every Generate call is counted and timed.
func Instrument(p Provider) Provider {
	return &instrumented{Provider: p}
}

func (i *instrumented) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	text, err := i.Provider.Generate(ctx, prompt)

	outcome := "ok"
	switch {
	case errors.Is(err, ErrNoCompletion):
		outcome = "empty"
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.LLMRequestsTotal.WithLabelValues(i.Name(), outcome).Inc()
	metrics.LLMRequestDuration.WithLabelValues(i.Name()).Observe(time.Since(start).Seconds())
	return text, err
}
