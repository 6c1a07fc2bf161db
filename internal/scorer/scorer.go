// Package scorer turns chunk similarities into a calibrated 0-100 match score.
//
// The raw score blends the best chunk with the average chunk:
//
//	raw = MaxWeight*max + (1-MaxWeight)*mean
//
// and is then mapped linearly from [Lo, Hi] onto [0, 100] and clamped. The
// bounds depend on the embedding model; the defaults suit unit-normalized
// sentence embeddings where unrelated texts rarely exceed 0.35.
package scorer

import (
	"fmt"
	"math"

	"github.com/spigell/cv-matcher/internal/ai"
)

const (
	DefaultLo        = 0.35
	DefaultHi        = 0.85
	DefaultMaxWeight = 0.7
)

type Config struct {
	Lo        float64 `mapstructure:"lo"`
	Hi        float64 `mapstructure:"hi"`
	MaxWeight float64 `mapstructure:"max-weight"`
}

func DefaultConfig() Config {
	return Config{Lo: DefaultLo, Hi: DefaultHi, MaxWeight: DefaultMaxWeight}
}

func (c Config) Validate() error {
	for _, x := range []float64{c.Lo, c.Hi, c.MaxWeight} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("calibration values must be finite, got lo=%v hi=%v max-weight=%v", c.Lo, c.Hi, c.MaxWeight)
		}
	}
	if c.Lo >= c.Hi {
		return fmt.Errorf("calibration bounds must satisfy lo < hi, got lo=%.3f hi=%.3f", c.Lo, c.Hi)
	}
	if c.MaxWeight < 0 || c.MaxWeight > 1 {
		return fmt.Errorf("max weight must be within [0,1], got %.3f", c.MaxWeight)
	}
	return nil
}

type Scorer struct {
	cfg Config
}

func New(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scorer config: %w", err)
	}
	return &Scorer{cfg: cfg}, nil
}

// Score compares query with every chunk vector. Zero chunks score 0.
func (s *Scorer) Score(query ai.Vector, chunks []ai.Vector) (float64, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	q := ai.Normalize(query)
	best := -1.0
	var total float64
	for _, c := range chunks {
		sim, err := ai.Dot(q, ai.Normalize(c))
		if err != nil {
			return 0, err
		}
		if sim > best {
			best = sim
		}
		total += sim
	}

	raw := s.cfg.MaxWeight*best + (1-s.cfg.MaxWeight)*total/float64(len(chunks))
	return s.Calibrate(raw), nil
}

// Calibrate maps a raw similarity onto [0, 100].
func (s *Scorer) Calibrate(raw float64) float64 {
	score := (raw - s.cfg.Lo) / (s.cfg.Hi - s.cfg.Lo) * 100
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
