package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"luxemap/estates/internal/logging"
)

// Operation performs one attempt and returns an error if it fails.
type Operation func(ctx context.Context) error

// IsRetryable reports whether a failed attempt should be retried.
type IsRetryable func(err error) bool

const DefaultMaxRetries = 3

// retryBackoff is the base delay; attempt n waits n*retryBackoff.
var retryBackoff = 50 * time.Millisecond

// Try runs op, retrying duplicate key errors up to DefaultMaxRetries times.
// Callers regenerate the document id inside op so a retry can succeed.
func Try(ctx context.Context, op Operation) error {
	return WithRetries(ctx, op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries runs op once plus up to maxRetries retries while retryable
// reports true. It stops early when ctx is done.
func WithRetries(ctx context.Context, op Operation, maxRetries int, retryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			return err
		}

		logging.Logger.Debugf("Retryable error on attempt %d: %v", attempt+1, err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt+1) * retryBackoff):
		}
	}
	return err
}

// IsMongoDuplicateKeyError checks for MongoDB error code 11000 in single
// and bulk write errors.
func IsMongoDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
