// Package listener turns bytes arriving on a process's channel into
// dispatcher invocations.
//
// The channel is opened without blocking on a writer, so the loop emulates
// a blocking read by polling: an empty read sleeps briefly and retries.
// Each byte read is exactly one notification; within a single read they
// are dispatched in arrival order.
package listener

import (
	"context"
	"errors"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/Iron-Ham/notifio/internal/dispatch"
	"github.com/Iron-Ham/notifio/internal/logging"
)

// deadlineReader is satisfied by *os.File; pipe reads are bounded with a
// deadline so cancellation never waits on an idle writer.
type deadlineReader interface {
	SetReadDeadline(t time.Time) error
}

// Loop reads notifications from r and invokes the runner once per byte,
// after a single Startup call. It runs until ctx is cancelled (returning
// ctx.Err()) or the read fails with an unexpected error. It never returns
// on its own otherwise; idling on the channel is the process's normal
// state.
func Loop(ctx context.Context, r io.Reader, runner dispatch.Runner, pollInterval time.Duration, bufSize int, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("listener")

	runner.Startup()

	dr, hasDeadline := r.(deadlineReader)

	buf := make([]byte, bufSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if hasDeadline {
			// A writer that connects but sends nothing would otherwise
			// park this read indefinitely and stall shutdown.
			_ = dr.SetReadDeadline(time.Now().Add(pollInterval))
		}

		n, err := r.Read(buf)
		for i := 0; i < n; i++ {
			runner.Run()
		}
		if n > 0 {
			logger.Debug("notifications dispatched", "count", n)
		}

		switch {
		case err == nil && n > 0:
			continue
		case errors.Is(err, os.ErrDeadlineExceeded):
			// The read itself waited out the poll interval.
			continue
		case err == nil, errors.Is(err, io.EOF), errors.Is(err, syscall.EAGAIN):
			// No data queued, or no writer currently connected.
			// Sleep briefly rather than busy-spin; cancellation
			// interrupts the sleep.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
		default:
			return err
		}
	}
}
