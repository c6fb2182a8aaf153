package workorder

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/SpaceTrucker2196/fieldhand/internal/store"
)

// RetryBusy runs op, retrying with exponential backoff while it returns
// store.ErrBusy. Any other error is permanent and returned immediately.
// Lock contention is expected under concurrent crews, so callers should not
// surface the first Busy to a user.
func RetryBusy(ctx context.Context, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 10 * time.Millisecond
	exp.MaxInterval = 250 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(); err != nil {
			if errors.Is(err, store.ErrBusy) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(exp),
		backoff.WithMaxElapsedTime(2*time.Second),
	)
	return err
}
