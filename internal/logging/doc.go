// Package logging provides structured logging on top of zap.
//
// Logger methods take a context and attach correlation fields found in it:
// the OpenTelemetry trace and span ids, the HTTP request id and the workflow
// run id.
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.Info(ctx, "stage completed", zap.String("stage", "reflect"))
//
// Output can go to stdout, to an OpenTelemetry LoggerProvider through the
// otelzap bridge, or both. Fields named like credentials (api_key, token,
// password, ...) and values matching bearer/api-key patterns are redacted by
// the encoder; config.Secret values should be logged with Secret.
//
// Levels below error are sampled per level; errors are never sampled.
//
// Tests use NewTestLogger, which records entries in memory.
package logging
