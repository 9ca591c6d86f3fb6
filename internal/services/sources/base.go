package sources

import (
	"math/rand"
	"sync"
	"time"
)

// GeneralSector is returned for symbols without a configured sector.
const GeneralSector = "General"

// Rand is the random source the generators draw from.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a goroutine-safe Rand seeded with seed.
func NewRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func orDefault(r Rand) Rand {
	if r == nil {
		return NewRand(time.Now().UnixNano())
	}
	return r
}

// Sectors maps a symbol to its industry sector.
type Sectors map[string]string

// Of returns the sector of symbol, or GeneralSector.
func (s Sectors) Of(symbol string) string {
	if v, ok := s[symbol]; ok && v != "" {
		return v
	}
	return GeneralSector
}

// DefaultSectors is the sector table used when none is configured.
func DefaultSectors() Sectors {
	return Sectors{
		"RELIANCE": "Oil & Gas",
		"TCS":      "IT",
		"HDFC":     "Banking",
		"INFY":     "IT",
		"ITC":      "FMCG",
	}
}

// band is a uniform range [lo, lo+span).
type band struct {
	lo, span float64
}

func (b band) draw(r Rand) float64 {
	return b.lo + r.Float64()*b.span
}

const neutral = 0.5
