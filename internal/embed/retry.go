package embed

import (
	"context"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

// runtimeRetryConfig is the bounded exponential-backoff policy for calls to
// the external embedding runtime, per §4.5's default-3-attempts rule.
// Reuses internal/errors.Retry rather than a package-local reimplementation
// of the teacher's embed.DownloadWithRetry, since this module already has
// a general-purpose retry helper with the same shape.
func runtimeRetryConfig() codelenserrors.RetryConfig {
	cfg := codelenserrors.DefaultRetryConfig()
	// MaxRetries counts retries after the first try, so 2 gives 3 attempts.
	cfg.MaxRetries = 2
	return cfg
}

// retryEmbedCall runs fn with the embedding runtime's retry policy.
func retryEmbedCall(ctx context.Context, fn func() error) error {
	return codelenserrors.Retry(ctx, runtimeRetryConfig(), fn)
}
