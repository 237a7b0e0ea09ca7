package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var errNotYet = errors.New("condition not met")

// pollUntil calls check every interval until it reports done, returns an
// error, or timeout elapses. A timeout yields ErrWaitTimeout.
func pollUntil(ctx context.Context, interval, timeout time.Duration, check func(ctx context.Context) (bool, error)) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		done, err := check(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !done {
			return struct{}{}, errNotYet
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(interval)),
		backoff.WithMaxElapsedTime(timeout),
	)

	if errors.Is(err, errNotYet) {
		return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
	}
	return err
}
