package markov

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recombiningCorpus = []string{
	"the cat sat on the mat",
	"the dog sat on the log",
	"a bird flew over the dog",
}

func TestGenerateProducesNovelSentencesFromCorpusTokens(t *testing.T) {
	model, err := Build(recombiningCorpus, 1)
	require.NoError(t, err)

	vocab := make(map[string]bool)
	for _, token := range model.Vocabulary() {
		vocab[token] = true
	}
	sources := SplitSentences(recombiningCorpus)

	opts := GenerateOptions{MaxTries: 100, MaxOverlapRatio: 0.9, MaxWords: 30, MinWords: 2}
	successes := 0
	for seed := int64(1); seed <= 50; seed++ {
		sentence, err := model.Generate(opts, rand.New(rand.NewSource(seed)))
		if err != nil {
			require.ErrorIs(t, err, ErrGenerationFailed)
			continue
		}
		successes++

		assert.GreaterOrEqual(t, len(sentence), 2)
		for _, token := range sentence {
			assert.True(t, vocab[token], "token %q is not from the corpus", token)
			assert.NotEqual(t, BeginSentinel, token)
			assert.NotEqual(t, EndSentinel, token)
		}
		for _, source := range sources {
			assert.LessOrEqual(t, OverlapRatio(sentence, source), 0.9, "sentence %q vs %v", sentence, source)
		}
	}
	assert.Positive(t, successes)
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	model, err := Build(recombiningCorpus, 1)
	require.NoError(t, err)

	opts := GenerateOptions{MaxTries: 100, MaxOverlapRatio: 0.9}
	first, firstErr := model.Generate(opts, rand.New(rand.NewSource(42)))
	second, secondErr := model.Generate(opts, rand.New(rand.NewSource(42)))

	assert.Equal(t, firstErr, secondErr)
	assert.Equal(t, first, second)
}

func TestGenerateRejectsVerbatimCopies(t *testing.T) {
	// Order two over these sentences can only reproduce them verbatim.
	model, err := Build([]string{"the quick brown fox", "the quick red fox"}, 2)
	require.NoError(t, err)

	sentence, err := model.Generate(GenerateOptions{MaxTries: 50, MaxOverlapRatio: 0.7}, rand.New(rand.NewSource(7)))
	require.ErrorIs(t, err, ErrGenerationFailed)
	assert.Nil(t, sentence)
}

func TestGenerateStaysOnReachablePaths(t *testing.T) {
	model, err := Build([]string{"the quick brown fox", "the quick red fox"}, 2)
	require.NoError(t, err)

	allowed := map[string]bool{
		"the quick brown fox": true,
		"the quick red fox":   true,
	}
	for seed := int64(1); seed <= 20; seed++ {
		sentence, err := model.Generate(GenerateOptions{MaxTries: 5, MaxOverlapRatio: 1}, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		assert.True(t, allowed[sentence.String()], "unexpected sentence %q", sentence)
	}
}

func TestGenerateAbortsRunawayAttempts(t *testing.T) {
	// Every path needs at least two tokens, so a one word budget aborts
	// each attempt.
	model, err := Build([]string{"a a a a a a a a a b"}, 1)
	require.NoError(t, err)

	_, err = model.Generate(GenerateOptions{MaxTries: 1, MaxOverlapRatio: 1, MaxWords: 1, MinWords: 1}, rand.New(rand.NewSource(3)))
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerateHonoursOverlapTotal(t *testing.T) {
	model, err := Build([]string{"one two three four five six"}, 1)
	require.NoError(t, err)

	_, err = model.Generate(GenerateOptions{MaxTries: 10, MaxOverlapRatio: 1, MaxOverlapTotal: 3}, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestLongestSharedRun(t *testing.T) {
	tests := []struct {
		a, b []string
		want int
	}{
		{a: nil, b: []string{"x"}, want: 0},
		{a: []string{"x", "y"}, b: []string{"z"}, want: 0},
		{a: []string{"a", "b", "c", "d"}, b: []string{"z", "b", "c", "y"}, want: 2},
		{a: []string{"a", "b", "c"}, b: []string{"a", "b", "c"}, want: 3},
		{a: []string{"a", "x", "a", "b"}, b: []string{"a", "b"}, want: 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LongestSharedRun(tt.a, tt.b), "%v vs %v", tt.a, tt.b)
	}
}
