package ticketnumber

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Generator produces one ticket-number value per call. Values must be unique across all concerts.
type Generator interface {
	Generate() string
}

// UUIDGenerator derives opaque ticket numbers from random UUIDs.
type UUIDGenerator struct {
	Prefix string
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{Prefix: "TKT"}
}

// Generate returns values such as TKT-3F2504E04F8911D39A0C0305E82C3301.
func (g *UUIDGenerator) Generate() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if g.Prefix == "" {
		return id
	}
	return g.Prefix + "-" + id
}

// SequenceGenerator hands out predictable, zero-padded numbers. Used for seeding and tests.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int64
}

func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix, next: 1}
}

func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.next
	g.next++
	return fmt.Sprintf("%s%08d", g.prefix, n)
}

// Issued reports how many values have been generated so far.
func (g *SequenceGenerator) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next - 1
}
