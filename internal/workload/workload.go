// Package workload generates deterministic key sets and operation sequences
// for exercising a skipmap.
package workload

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

// Distribution names how keys are picked from the key universe.
type Distribution string

const (
	// Sequential walks the universe in ascending order, wrapping around.
	Sequential Distribution = "sequential"
	// Uniform picks every key with the same probability.
	Uniform Distribution = "uniform"
	// Zipf favours a small set of hot keys.
	Zipf Distribution = "zipf"
	// UUID uses random version 4 UUID strings as keys, picked uniformly.
	UUID Distribution = "uuid"
)

// ErrUnknownDistribution is returned by ParseDistribution.
var ErrUnknownDistribution = errors.New("workload: unknown distribution")

// Distributions lists every supported distribution.
func Distributions() []Distribution {
	return []Distribution{Sequential, Uniform, Zipf, UUID}
}

// ParseDistribution validates a distribution name. Matching is case-insensitive.
func ParseDistribution(s string) (Distribution, error) {
	d := Distribution(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Distributions() {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownDistribution, s)
}

// OpKind is the type of one map operation.
type OpKind uint8

const (
	OpGet OpKind = iota
	OpPut
	OpRemove
)

func (k OpKind) String() string {
	switch k {
	case OpGet:
		return "get"
	case OpPut:
		return "put"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Op is one operation against a map.
type Op struct {
	Kind OpKind
	Key  string
}

// Config describes a workload.
type Config struct {
	N           int          // size of the key universe
	Ops         int          // operations generated by Mix
	Dist        Distribution // how Mix picks keys
	Seed        uint64       // same seed, same keys and ops
	RemoveRatio float64      // share of removes in the mix
	GetRatio    float64      // share of gets in the mix, the rest are puts
	ZipfS       float64      // Zipf exponent, must be > 1
}

// Validate checks the ratios and sizes.
func (c Config) Validate() error {
	switch {
	case c.N <= 0:
		return fmt.Errorf("workload: key universe must be positive, got %d", c.N)
	case c.Ops < 0:
		return fmt.Errorf("workload: operation count must not be negative, got %d", c.Ops)
	case c.RemoveRatio < 0 || c.GetRatio < 0 || c.RemoveRatio+c.GetRatio > 1:
		return fmt.Errorf("workload: invalid ratios remove=%.2f get=%.2f", c.RemoveRatio, c.GetRatio)
	case c.Dist == Zipf && c.ZipfS <= 1:
		return fmt.Errorf("workload: zipf exponent must be > 1, got %.2f", c.ZipfS)
	}
	_, err := ParseDistribution(string(c.Dist))
	return err
}

// Keys returns the key universe of the workload: N distinct keys. Integer
// keys are zero padded so their string order matches their numeric order.
// Sequential keys come back ascending, every other distribution shuffled.
func Keys(c Config) []string {
	keys := make([]string, c.N)
	if c.Dist == UUID {
		// ChaCha8 doubles as a deterministic io.Reader for the UUID bytes.
		src := rand.NewChaCha8(seedBytes(c.Seed))
		for i := range keys {
			keys[i] = uuid.Must(uuid.NewRandomFromReader(src)).String()
		}
		return keys
	}

	for i := range keys {
		keys[i] = fmt.Sprintf("k%012d", i)
	}
	if c.Dist != Sequential {
		r := rand.New(rand.NewPCG(c.Seed, c.Seed+1))
		r.Shuffle(len(keys), func(i, j int) {
			keys[i], keys[j] = keys[j], keys[i]
		})
	}
	return keys
}

// Generator produces operations one by one over a key universe.
type Generator struct {
	cfg  Config
	keys []string
	rng  *rand.Rand
	zipf *rand.Zipf
	pos  int
}

// NewGenerator builds a generator for c over keys.
func NewGenerator(c Config, keys []string) (*Generator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.New("workload: empty key universe")
	}
	g := &Generator{
		cfg:  c,
		keys: keys,
		rng:  rand.New(rand.NewPCG(c.Seed^0x5bd1e995, c.Seed)),
	}
	if c.Dist == Zipf {
		g.zipf = rand.NewZipf(g.rng, c.ZipfS, 1, uint64(len(keys)-1))
	}
	return g, nil
}

// nextIndex returns the position of the next key in the universe.
func (g *Generator) nextIndex() int {
	switch g.cfg.Dist {
	case Sequential:
		i := g.pos % len(g.keys)
		g.pos++
		return i
	case Zipf:
		return int(g.zipf.Uint64())
	default:
		return g.rng.IntN(len(g.keys))
	}
}

// Next returns the next operation.
func (g *Generator) Next() Op {
	key := g.keys[g.nextIndex()]
	x := g.rng.Float64()
	switch {
	case x < g.cfg.RemoveRatio:
		return Op{Kind: OpRemove, Key: key}
	case x < g.cfg.RemoveRatio+g.cfg.GetRatio:
		return Op{Kind: OpGet, Key: key}
	default:
		return Op{Kind: OpPut, Key: key}
	}
}

// Mix generates the full operation sequence of c over keys.
func Mix(c Config, keys []string) ([]Op, error) {
	g, err := NewGenerator(c, keys)
	if err != nil {
		return nil, err
	}
	ops := make([]Op, c.Ops)
	for i := range ops {
		ops[i] = g.Next()
	}
	return ops, nil
}

func seedBytes(seed uint64) [32]byte {
	var b [32]byte
	for i := range 4 {
		s := seed + uint64(i)*0x9e3779b97f4a7c15
		for j := range 8 {
			b[i*8+j] = byte(s >> (8 * j))
		}
	}
	return b
}
