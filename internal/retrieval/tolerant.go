package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/metrics"
)

// Call is one branch of the fan-out.
type Call func(ctx context.Context) ([]domain.Item, error)

type outcome struct {
	items []domain.Item
	err   error
}

// Tolerant runs call under timeout and turns an error, a timeout or a panic into an
// empty contribution. It returns as soon as the deadline passes even if call does not.
func Tolerant(ctx context.Context, log *slog.Logger, m *metrics.Metrics, name string, timeout time.Duration, call Call) []domain.Item {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		items, err := call(ctx)
		done <- outcome{items: items, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		res = outcome{err: ctx.Err()}
	}

	if res.err != nil {
		label := "error"
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
			label = "timeout"
		}
		m.Connector(name, label)
		if log != nil {
			log.Warn("source degraded to empty result", "source", name, "outcome", label, "error", res.err)
		}
		return nil
	}
	m.Connector(name, "ok")
	return res.items
}
