// Package identifier produces scan tokens that are unique across every
// tenant for the lifetime of the system.
package identifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

// DefaultMaxAttempts bounds how many candidates are tried before giving up.
const DefaultMaxAttempts = 5

// Oracle answers whether a token is already registered.
type Oracle interface {
	Exists(ctx context.Context, token string) (bool, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, token string) (bool, error)

func (f OracleFunc) Exists(ctx context.Context, token string) (bool, error) { return f(ctx, token) }

// Generator builds tokens of the form TENANT-SERVICE-COMPONENT-SUFFIX, e.g.
// "ACME-DC-000C-9F3A1B". COMPONENT is the base-36 sequence number, or the
// base-36 millisecond clock when no sequence is given. SUFFIX is random, so
// two candidates built in the same tick still differ.
type Generator struct {
	oracle      Oracle
	maxAttempts int
	now         func() time.Time
	suffix      func() string
}

// NewGenerator returns a generator backed by oracle. maxAttempts <= 0 means
// DefaultMaxAttempts.
func NewGenerator(oracle Oracle, maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{
		oracle:      oracle,
		maxAttempts: maxAttempts,
		now:         time.Now,
		suffix:      randomSuffix,
	}
}

// Generate returns a token the oracle does not know yet.
func (g *Generator) Generate(ctx context.Context, tenantHint, serviceName string, sequence int) (string, error) {
	return g.Claim(ctx, tenantHint, serviceName, sequence, nil)
}

// Claim generates candidates and hands each one that passes the oracle to
// claim, which is expected to register it. A claim failing with
// domain.ErrTokenTaken (a unique-index race lost to another writer) costs one
// attempt; any other error aborts. After the last attempt Claim fails with
// domain.ErrGenerationExhausted.
func (g *Generator) Claim(ctx context.Context, tenantHint, serviceName string, sequence int, claim func(token string) error) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		token := g.candidate(tenantHint, serviceName, sequence)

		exists, err := g.oracle.Exists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("check token %s: %w", token, err)
		}
		if exists {
			continue
		}
		if claim != nil {
			if err := claim(token); err != nil {
				if errors.Is(err, domain.ErrTokenTaken) {
					continue
				}
				return "", err
			}
		}
		return token, nil
	}
	return "", fmt.Errorf("%w after %d attempts", domain.ErrGenerationExhausted, g.maxAttempts)
}

func (g *Generator) candidate(tenantHint, serviceName string, sequence int) string {
	var component string
	if sequence > 0 {
		component = strings.ToUpper(strconv.FormatInt(int64(sequence), 36))
		if n := len(component); n < 4 {
			component = strings.Repeat("0", 4-n) + component
		}
	} else {
		component = strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	}
	return strings.Join([]string{
		fragment(tenantHint, 4, "GEN"),
		fragment(serviceName, 3, "ITM"),
		component,
		g.suffix(),
	}, "-")
}

// fragment keeps the first n letters and digits of s, upper-cased.
func fragment(s string, n int, fallback string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == n {
				break
			}
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

func randomSuffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}
