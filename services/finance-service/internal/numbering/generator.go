// services/finance-service/internal/numbering/generator.go

package numbering

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// minDigits is the zero-pad width. Sequences past 9999 keep growing.
const minDigits = 4

var prefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}$`)

// Source reads the highest number already issued for a prefix and year.
// Ordering must be numeric: by length first, then lexically.
// An empty string means nothing was issued yet.
type Source interface {
	LatestNumber(ctx context.Context, prefix string, year int) (string, error)
}

// Generator hands out PREFIX-YEAR-NNNN numbers. It does not lock: two callers
// may compute the same number, and the unique constraint plus the caller's
// retry loop sorts that out.
type Generator struct {
	source Source
	now    func() time.Time
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(source Source, opts ...Option) *Generator {
	g := &Generator{
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the next number for prefix in the current calendar year.
func (g *Generator) Generate(ctx context.Context, prefix string) (string, error) {
	if !prefixPattern.MatchString(prefix) {
		return "", fmt.Errorf("invalid number prefix %q", prefix)
	}
	year := g.now().Year()

	latest, err := g.source.LatestNumber(ctx, prefix, year)
	if err != nil {
		return "", fmt.Errorf("failed to read latest %s number: %w", prefix, err)
	}
	if latest == "" {
		return FormatNumber(prefix, year, 1), nil
	}

	_, _, seq, err := ParseNumber(latest)
	if err != nil {
		return "", err
	}
	return FormatNumber(prefix, year, seq+1), nil
}

// FormatNumber renders PREFIX-YEAR-NNNN.
func FormatNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, minDigits, seq)
}

// ParseNumber splits a document number into its prefix, year and sequence.
func ParseNumber(number string) (prefix string, year, seq int, err error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("malformed document number %q", number)
	}
	prefix = parts[0]
	if !prefixPattern.MatchString(prefix) {
		return "", 0, 0, fmt.Errorf("malformed document number %q: bad prefix", number)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return "", 0, 0, fmt.Errorf("malformed document number %q: bad year", number)
	}
	if len(parts[2]) < minDigits {
		return "", 0, 0, fmt.Errorf("malformed document number %q: sequence too short", number)
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil || seq < 1 {
		return "", 0, 0, fmt.Errorf("malformed document number %q: bad sequence", number)
	}
	return prefix, year, seq, nil
}

// Rebase keeps the year and sequence of number under a different prefix.
// Receipts use it to mirror the invoice they settle.
func Rebase(number, prefix string) (string, error) {
	_, year, seq, err := ParseNumber(number)
	if err != nil {
		return "", err
	}
	return FormatNumber(prefix, year, seq), nil
}
