package markov

import (
	"errors"
	"math/rand"
	"strings"

	"github.com/kapu/markov-kakao-bot-go/internal/constants"
)

// ErrGenerationFailed is returned when every attempt was rejected.
var ErrGenerationFailed = errors.New("markov: no acceptable sentence within retry budget")

// GenerateOptions tunes sentence sampling. Zero values fall back to
// constants.MarkovDefaults.
type GenerateOptions struct {
	// MaxTries is the number of independent attempts.
	MaxTries int
	// MaxOverlapRatio rejects a sentence whose longest run shared with any
	// training sentence, divided by its length, exceeds the ratio.
	MaxOverlapRatio float64
	// MaxOverlapTotal additionally rejects shared runs longer than this many
	// tokens. Negative disables the check.
	MaxOverlapTotal int
	// MaxWords aborts an attempt that grows past this many tokens.
	MaxWords int
	// MinWords rejects shorter sentences.
	MinWords int
}

// DefaultGenerateOptions returns the production tuning.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		MaxTries:        constants.MarkovDefaults.MaxTries,
		MaxOverlapRatio: constants.MarkovDefaults.MaxOverlapRatio,
		MaxOverlapTotal: constants.MarkovDefaults.MaxOverlapTotal,
		MaxWords:        constants.MarkovDefaults.MaxWords,
		MinWords:        constants.MarkovDefaults.MinWords,
	}
}

func (o GenerateOptions) normalized() GenerateOptions {
	defaults := DefaultGenerateOptions()
	if o.MaxTries <= 0 {
		o.MaxTries = defaults.MaxTries
	}
	if o.MaxOverlapRatio <= 0 {
		o.MaxOverlapRatio = defaults.MaxOverlapRatio
	}
	if o.MaxOverlapTotal == 0 {
		o.MaxOverlapTotal = defaults.MaxOverlapTotal
	}
	if o.MaxWords <= 0 {
		o.MaxWords = defaults.MaxWords
	}
	if o.MinWords <= 0 {
		o.MinWords = defaults.MinWords
	}
	return o
}

// Sentence is a generated token sequence.
type Sentence []string

func (s Sentence) String() string {
	return strings.Join(s, " ")
}

// Generate samples sentences from the model until one terminates cleanly and
// is novel enough with respect to the training sentences. The same rng seed
// and model always produce the same result.
func (m *Model) Generate(opts GenerateOptions, rng *rand.Rand) (Sentence, error) {
	opts = opts.normalized()

	for try := 0; try < opts.MaxTries; try++ {
		ids, ok := m.walk(opts.MaxWords, rng)
		if !ok || len(ids) < opts.MinWords {
			continue
		}
		if !m.novel(ids, opts) {
			continue
		}

		sentence := make(Sentence, len(ids))
		for i, id := range ids {
			sentence[i] = m.vocab[id]
		}
		return sentence, nil
	}
	return nil, ErrGenerationFailed
}

// walk runs one attempt from the begin state. It reports false when the
// attempt exceeds maxWords before reaching the end sentinel.
func (m *Model) walk(maxWords int, rng *rand.Rand) ([]int, bool) {
	state := make([]int, m.order)
	for i := range state {
		state[i] = beginID
	}

	var out []int
	for {
		successors := m.chain[stateKey(state)]
		if len(successors) == 0 {
			return nil, false
		}

		next := successors[rng.Intn(len(successors))]
		if next == endID {
			return out, true
		}
		if len(out) >= maxWords {
			return nil, false
		}
		out = append(out, next)

		copy(state, state[1:])
		state[len(state)-1] = next
	}
}

func (m *Model) novel(ids []int, opts GenerateOptions) bool {
	for _, source := range m.sentences {
		run := LongestSharedRun(ids, source)
		if float64(run)/float64(len(ids)) > opts.MaxOverlapRatio {
			return false
		}
		if opts.MaxOverlapTotal > 0 && run > opts.MaxOverlapTotal {
			return false
		}
	}
	return true
}

// LongestSharedRun returns the length of the longest contiguous run of
// elements present in both a and b.
func LongestSharedRun[T comparable](a, b []T) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return best
}

// OverlapRatio is the longest shared run between generated and source divided
// by the length of generated.
func OverlapRatio(generated, source []string) float64 {
	if len(generated) == 0 {
		return 0
	}
	return float64(LongestSharedRun(generated, source)) / float64(len(generated))
}
