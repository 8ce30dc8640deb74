package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/kjstillabower/climate-insights/internal/models"
)

// inFlightVerification is one identity provider call that concurrent requests share.
type inFlightVerification struct {
	done      chan struct{}
	principal models.Principal
	err       error
	waiters   int
}

// requestCoalescer collapses concurrent verifications of the same token into one
// upstream call. Results are not retained after the call returns; the principal
// cache covers that.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightVerification
}

func newRequestCoalescer() *requestCoalescer {
	return &requestCoalescer{inFlight: make(map[string]*inFlightVerification)}
}

// GetOrDo runs fn for key unless a call for key is already running, in which case it
// waits for that call's result. A waiter whose leader was cancelled or timed out runs
// fn itself with its own context.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func(context.Context) (models.Principal, error)) (models.Principal, error) {
	rc.mu.Lock()
	if req, ok := rc.inFlight[key]; ok {
		req.waiters++
		rc.mu.Unlock()
		select {
		case <-req.done:
			if isContextError(req.err) && ctx.Err() == nil {
				return fn(ctx)
			}
			return req.principal, req.err
		case <-ctx.Done():
			return models.Principal{}, ctx.Err()
		}
	}

	req := &inFlightVerification{done: make(chan struct{})}
	rc.inFlight[key] = req
	rc.mu.Unlock()

	defer func() {
		rc.mu.Lock()
		delete(rc.inFlight, key)
		rc.mu.Unlock()
		close(req.done)
	}()
	req.principal, req.err = fn(ctx)
	return req.principal, req.err
}

// waiting reports how many callers are blocked on key's in-flight call.
func (rc *requestCoalescer) waiting(key string) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if req, ok := rc.inFlight[key]; ok {
		return req.waiters
	}
	return 0
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
