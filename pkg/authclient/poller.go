package authclient

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StartVerificationPoll begins polling the provider until the current user's
// email is verified, then invokes onVerified once and stops. A running poll
// is stopped first, so the loop is restartable. Cancellation is cooperative:
// the returned stop function (and StopVerificationPoll, and Close) cancels
// the loop and waits for it to exit, so no timer leaks past teardown.
//
// Poll failures are logged and swallowed; the loop continues.
func (c *Coordinator) StartVerificationPoll(ctx context.Context, onVerified func()) (stop func()) {
	c.StopVerificationPoll()

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.mu.Lock()
	c.pollCancel = cancel
	c.pollDone = done
	interval := c.pollInterval
	c.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				user, err := c.provider.ReloadUser(pollCtx)
				if err != nil {
					c.logger.Debug("verification poll failed", zap.Error(err))
					continue
				}
				if user != nil && user.EmailVerified {
					if onVerified != nil {
						onVerified()
					}
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// StopVerificationPoll cancels a running poll and waits for its goroutine to
// exit. Safe to call when no poll is running.
func (c *Coordinator) StopVerificationPoll() {
	c.mu.Lock()
	cancel := c.pollCancel
	done := c.pollDone
	c.pollCancel = nil
	c.pollDone = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
