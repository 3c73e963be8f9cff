// Package retry retries connection establishment with exponential backoff.
//
// Only startup connectivity goes through this package. Batch writes are
// never retried: a failed batch is reported once and its file stays on disk.
//
//	classifier := retry.NewPostgreSQLErrorClassifier()
//	strategy := retry.NewExponentialBackoff(3, retry.WithMaxDelay(time.Minute))
//	executor := retry.NewExecutor(classifier, strategy, logger)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
//
// PostgreSQLErrorClassifier treats SQLSTATE classes 08, 53 and 57, a few
// lock and serialization codes, and network level failures as transient.
// Everything else, including authentication failures, is fatal.
package retry
