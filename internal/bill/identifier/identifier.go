package identifier

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	// MaxAttempts bounds how many candidates are drawn per bill.
	MaxAttempts   = 5
	randomBytes   = 5
	DefaultPrefix = "KA"
)

var ErrExhausted = errors.New("identifier_exhausted")

var humanPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*-[0-9a-f]{10}$`)

// Checker reports whether a bill already uses the candidate key.
type Checker interface {
	BillExists(ctx context.Context, id string) (bool, error)
}

type CheckerFunc func(ctx context.Context, id string) (bool, error)

func (f CheckerFunc) BillExists(ctx context.Context, id string) (bool, error) {
	return f(ctx, id)
}

// Observer receives collision and exhaustion events; nil is allowed.
type Observer interface {
	RecordBillIDCollision(ctx context.Context)
	RecordBillIDExhausted(ctx context.Context)
}

type Generator struct {
	prefix   string
	checker  Checker
	random   io.Reader
	observer Observer
}

type Option func(*Generator)

// WithRandom swaps the entropy source.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}

func WithObserver(o Observer) Option {
	return func(g *Generator) { g.observer = o }
}

func New(prefix string, checker Checker, opts ...Option) *Generator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = DefaultPrefix
	}
	g := &Generator{
		prefix:  prefix,
		checker: checker,
		random:  rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Prefix() string { return g.prefix }

// Generate draws up to MaxAttempts candidates and returns the first one not
// already stored. It never writes.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		candidate, err := g.candidate()
		if err != nil {
			return "", err
		}
		exists, err := g.checker.BillExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		if g.observer != nil {
			g.observer.RecordBillIDCollision(ctx)
		}
	}
	if g.observer != nil {
		g.observer.RecordBillIDExhausted(ctx)
	}
	return "", ErrExhausted
}

func (g *Generator) candidate() (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return g.prefix + "-" + hex.EncodeToString(buf), nil
}

// IsHuman reports whether id has the PREFIX-hex shape.
func IsHuman(id string) bool {
	return humanPattern.MatchString(id)
}

func IsSnowflake(id string) bool {
	parsed, err := snowflake.ParseString(id)
	return err == nil && parsed > 0
}

// Valid accepts either id form a bill can carry.
func Valid(id string) bool {
	id = strings.TrimSpace(id)
	return IsHuman(id) || IsSnowflake(id)
}
