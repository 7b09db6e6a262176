package split

import (
	"math"
	"math/rand/v2"

	"audiomanifest/config"
	"audiomanifest/model"

	"github.com/cockroachdb/errors"
)

// Splitter owns the run's random generator.
type Splitter struct {
	rng *rand.Rand
}

// New creates a Splitter whose permutation is fully determined by seed.
func New(seed int64) *Splitter {
	return &Splitter{rng: rand.New(rand.NewPCG(uint64(seed), 0))}
}

// Split 打乱 records 的副本，前 floor(n*validFraction) 条作为验证集，其余为训练集。
// 输入切片不会被修改。
func (s *Splitter) Split(records []model.FileRecord, validFraction float64) (model.Split, error) {
	if math.IsNaN(validFraction) || validFraction < 0 || validFraction > 1 {
		return model.Split{}, &config.Error{
			Field: "valid-percent",
			Value: validFraction,
			Err:   errors.New("must be between 0 and 1"),
		}
	}

	shuffled := make([]model.FileRecord, len(records))
	copy(shuffled, records)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	k := ValidCount(len(shuffled), validFraction)
	return model.Split{
		Validation: shuffled[:k:k],
		Training:   shuffled[k:],
	}, nil
}

// Split is a one-shot helper: New(seed).Split(records, validFraction).
func Split(records []model.FileRecord, validFraction float64, seed int64) (model.Split, error) {
	return New(seed).Split(records, validFraction)
}

// ValidCount returns floor(n * validFraction), clamped to [0, n].
func ValidCount(n int, validFraction float64) int {
	k := int(math.Floor(float64(n) * validFraction))
	if k < 0 {
		return 0
	}
	if k > n {
		return n
	}
	return k
}
