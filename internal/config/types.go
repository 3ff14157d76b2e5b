package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a time.Duration that decodes from config text. Both Go
// duration strings ("90s", "2m") and bare integers, read as seconds, are
// accepted, so MINDMAPD_LLM_TIMEOUT=120 works the same as "120s".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = 0
		return nil
	}

	var parsed time.Duration
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		parsed = time.Duration(secs) * time.Second
	} else {
		parsed, err = time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", raw)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret is a credential read from config: the OpenAI key, the news API
// key, the Redis password. Every rendering path (fmt, JSON, YAML, text)
// shows a mask; only Value exposes the raw string.
type Secret string

const secretMask = "[REDACTED]"

// masked is what a Secret renders as. Unset secrets render empty so a
// dumped config shows which credentials are missing.
func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return secretMask
}

func (s Secret) String() string { return s.masked() }
func (s Secret) GoString() string { return "config.Secret(" + strconv.Quote(s.masked()) + ")" }

// Value returns the raw credential. Pass it only to the client that needs it.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a credential was configured.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.masked()) }
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }
func (s Secret) MarshalYAML() (interface{}, error) { return s.masked(), nil }

func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(strings.TrimSpace(string(text)))
	return nil
}

func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("secret must be a string: %w", err)
	}
	*s = Secret(strings.TrimSpace(raw))
	return nil
}
