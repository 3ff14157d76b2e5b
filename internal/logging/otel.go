package logging

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

var errNoOutputs = errors.New("logging: no output enabled")

// buildCore assembles the local writer core and, when a provider is
// given, the OTEL bridge core. The stdio MCP transport owns stdout, so
// Output.Stderr moves the local writer to stderr.
func buildCore(cfg *Config, provider log.LoggerProvider) (zapcore.Core, error) {
	var cores []zapcore.Core

	if cfg.Output.Stdout {
		enc, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("redaction: %w", err)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(localWriter(cfg.Output)), cfg.Level))
	}

	if cfg.Output.OTEL && provider != nil {
		cores = append(cores, otelzap.NewCore(scopeName(cfg), otelzap.WithLoggerProvider(provider)))
	}

	switch len(cores) {
	case 0:
		return nil, errNoOutputs
	case 1:
		return newSampledCore(cores[0], cfg.Sampling), nil
	default:
		return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
	}
}

func localWriter(out OutputConfig) io.Writer {
	if out.Stderr {
		return os.Stderr
	}
	return os.Stdout
}

// scopeName is the instrumentation scope for bridged records.
func scopeName(cfg *Config) string {
	if name := cfg.Fields["service"]; name != "" {
		return name
	}
	return "mindmapd"
}
