// Package auth verifies Google Sign-In ID tokens and checks the signed-in
// email against an allow-list.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/mindmapd/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2/jws"
)

// DefaultCertsURL serves Google's current token signing keys as a JWK set.
const DefaultCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

const defaultKeyTTL = time.Hour

var (
	// ErrNotConfigured is returned when no Google client id is set.
	ErrNotConfigured = errors.New("google client id not configured")

	// ErrInvalidToken is returned for tokens that fail any verification step.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotAllowed is returned when the token is valid but the email is
	// not on the allow-list.
	ErrNotAllowed = errors.New("access denied: your email is not authorized")
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// User is the verified identity returned to the client.
type User struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// Config configures a Verifier.
type Config struct {
	ClientID      string
	AllowedEmails []string
	CertsURL      string
}

// FromSettings builds a Config from the loaded configuration.
func FromSettings(a config.AuthConfig) Config {
	return Config{
		ClientID:      a.GoogleClientID,
		AllowedEmails: a.AllowedEmails,
		CertsURL:      a.CertsURL,
	}
}

// Verifier checks ID tokens against Google's published keys. Keys are
// cached and refetched when they expire or an unknown key id shows up.
type Verifier struct {
	clientID   string
	certsURL   string
	allowed    map[string]struct{}
	httpClient *http.Client
	keyTTL     time.Duration
	now        func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithHTTPClient replaces the client used to fetch signing keys.
func WithHTTPClient(hc *http.Client) Option {
	return func(v *Verifier) { v.httpClient = hc }
}

// WithClock replaces the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New creates a Verifier.
func New(cfg Config, opts ...Option) *Verifier {
	if cfg.CertsURL == "" {
		cfg.CertsURL = DefaultCertsURL
	}
	v := &Verifier{
		clientID: cfg.ClientID,
		certsURL: cfg.CertsURL,
		allowed:  make(map[string]struct{}, len(cfg.AllowedEmails)),
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		keyTTL: defaultKeyTTL,
		now:    time.Now,
	}
	for _, e := range cfg.AllowedEmails {
		if e = normalizeEmail(e); e != "" {
			v.allowed[e] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ClientID returns the Google OAuth client id the frontend signs in with.
func (v *Verifier) ClientID() (string, error) {
	if v.clientID == "" {
		return "", ErrNotConfigured
	}
	return v.clientID, nil
}

// Allowed reports whether email is on the allow-list. An empty list allows
// nobody.
func (v *Verifier) Allowed(email string) bool {
	_, ok := v.allowed[normalizeEmail(email)]
	return ok
}

// Verify checks the token signature, audience, issuer and expiry, then the
// allow-list.
func (v *Verifier) Verify(ctx context.Context, token string) (User, error) {
	if v.clientID == "" {
		return User{}, ErrNotConfigured
	}

	token = strings.TrimSpace(token)
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return User{}, fmt.Errorf("%w: malformed token", ErrInvalidToken)
	}

	var header jws.Header
	if err := decodeSegment(parts[0], &header); err != nil {
		return User{}, fmt.Errorf("%w: header: %v", ErrInvalidToken, err)
	}
	if header.Algorithm != "RS256" {
		return User{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidToken, header.Algorithm)
	}

	key, err := v.key(ctx, header.KeyID)
	if err != nil {
		return User{}, err
	}
	if err := jws.Verify(token, key); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, err := jws.Decode(token)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Aud != v.clientID {
		return User{}, fmt.Errorf("%w: wrong audience", ErrInvalidToken)
	}
	if !googleIssuers[claims.Iss] {
		return User{}, fmt.Errorf("%w: wrong issuer %q", ErrInvalidToken, claims.Iss)
	}
	if v.now().Unix() >= claims.Exp {
		return User{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}

	var profile struct {
		Email         string `json:"email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := decodeSegment(parts[1], &profile); err != nil {
		return User{}, fmt.Errorf("%w: claims: %v", ErrInvalidToken, err)
	}
	if profile.Email == "" {
		return User{}, fmt.Errorf("%w: missing email", ErrInvalidToken)
	}

	if !v.Allowed(profile.Email) {
		return User{}, ErrNotAllowed
	}
	return User{Email: profile.Email, Name: profile.Name, Picture: profile.Picture}, nil
}

// key returns the signing key for kid. An empty kid is accepted only when
// exactly one key is published.
func (v *Verifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	stale := v.keys == nil || v.now().Sub(v.fetchedAt) > v.keyTTL
	if !stale {
		if k, ok := v.lookup(kid); ok {
			return k, nil
		}
	}

	keys, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	v.keys = keys
	v.fetchedAt = v.now()

	if k, ok := v.lookup(kid); ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: unknown key id %q", ErrInvalidToken, kid)
}

func (v *Verifier) lookup(kid string) (*rsa.PublicKey, bool) {
	if kid == "" {
		if len(v.keys) != 1 {
			return nil, false
		}
		for _, k := range v.keys {
			return k, true
		}
	}
	k, ok := v.keys[kid]
	return k, ok
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (v *Verifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create certs request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signing keys: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch signing keys: status %d", resp.StatusCode)
	}

	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode signing keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			return nil, fmt.Errorf("signing key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	return keys, nil
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}

func decodeSegment(seg string, v any) error {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
