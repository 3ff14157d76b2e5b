// Package events publishes workflow progress to NATS.
//
// Every stage start, completion and failure is published to
//
//	{prefix}.{run_id}.{stage}.{status}
//
// with a JSON Event payload, so subscribers can follow one run with
// "{prefix}.{run_id}.>" or every run with "{prefix}.>".
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/logging"
	"github.com/fyrsmithlabs/mindmapd/internal/workflow"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is the first subject token.
const DefaultSubjectPrefix = "mindmap"

// Event is the published payload.
type Event struct {
	workflow.StageProgress
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes stage progress events.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *logging.Logger
	owned  bool
	now    func() time.Time
}

// Connect dials url and returns a Publisher that owns the connection.
func Connect(url, prefix string, logger *logging.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("mindmapd"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	p := New(nc, prefix, logger)
	p.owned = true
	return p, nil
}

// New wraps an existing connection.
func New(nc *nats.Conn, prefix string, logger *logging.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{nc: nc, prefix: prefix, logger: logger, now: time.Now}
}

// Subject returns the subject an event for p is published on.
func (pub *Publisher) Subject(p workflow.StageProgress) string {
	return fmt.Sprintf("%s.%s.%s.%s", pub.prefix, token(p.RunID), token(string(p.Stage)), token(string(p.Status)))
}

// Publish sends p.
func (pub *Publisher) Publish(p workflow.StageProgress) error {
	data, err := json.Marshal(Event{StageProgress: p, Timestamp: pub.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := pub.nc.Publish(pub.Subject(p), data); err != nil {
		return fmt.Errorf("publish %s event: %w", p.Status, err)
	}
	return nil
}

// Callback returns a progress callback for workflow.Engine.OnProgress.
// Publish failures are logged and never affect the run.
func (pub *Publisher) Callback() workflow.ProgressCallback {
	return func(ctx context.Context, p workflow.StageProgress) {
		if err := pub.Publish(p); err != nil {
			pub.logger.Warn(ctx, "failed to publish progress event",
				zap.String("stage", string(p.Stage)),
				zap.String("status", string(p.Status)),
				zap.Error(err))
		}
	}
}

// Flush waits for buffered events to reach the server.
func (pub *Publisher) Flush(timeout time.Duration) error {
	return pub.nc.FlushTimeout(timeout)
}

// Close drains the connection when the Publisher owns it.
func (pub *Publisher) Close() error {
	if !pub.owned {
		return nil
	}
	return pub.nc.Drain()
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
