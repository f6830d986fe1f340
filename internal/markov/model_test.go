package markov

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRecordsSuccessorMultiset(t *testing.T) {
	model, err := Build([]string{"the quick brown fox", "the quick red fox"}, 2)
	require.NoError(t, err)

	successors := model.Successors("the", "quick")
	sort.Strings(successors)
	if diff := cmp.Diff([]string{"brown", "red"}, successors); diff != "" {
		t.Fatalf("successors of (the, quick) mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"the", "the"}, model.Successors(BeginSentinel, BeginSentinel))
	assert.Equal(t, []string{"quick", "quick"}, model.Successors(BeginSentinel, "the"))
	assert.Equal(t, []string{EndSentinel}, model.Successors("brown", "fox"))
	assert.Nil(t, model.Successors("quick"), "state of the wrong order")
	assert.Nil(t, model.Successors("purple", "fox"), "unknown token")
}

func TestBuildPreservesDuplicateSuccessors(t *testing.T) {
	model, err := Build([]string{"a b", "a b", "a c"}, 1)
	require.NoError(t, err)

	successors := model.Successors("a")
	sort.Strings(successors)
	assert.Equal(t, []string{"b", "b", "c"}, successors)
}

func TestBuildSplitsFragmentsOnLineBreaks(t *testing.T) {
	model, err := Build([]string{"first line here\n\n  second line  \r\nthird"}, 1)
	require.NoError(t, err)

	assert.Equal(t, 3, model.SentenceCount())
	assert.Equal(t, []string{EndSentinel}, model.Successors("here"))
	assert.Equal(t, []string{EndSentinel}, model.Successors("third"))
}

func TestBuildRejectsEmptyCorpus(t *testing.T) {
	tests := []struct {
		name   string
		corpus []string
	}{
		{name: "nil", corpus: nil},
		{name: "no fragments", corpus: []string{}},
		{name: "blank fragments", corpus: []string{"", "   ", "\n \n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := Build(tt.corpus, 2)
			require.ErrorIs(t, err, ErrEmptyCorpus)
			assert.Nil(t, model)
		})
	}
}

func TestBuildRejectsInvalidOrder(t *testing.T) {
	model, err := Build([]string{"some text"}, 0)
	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Nil(t, model)
}

func TestBuildEveryStateHasSuccessors(t *testing.T) {
	corpora := [][]string{
		{"one"},
		{"the quick brown fox", "the quick red fox"},
		{"a b c d e f g", "g f e d c b a", "a a a a"},
		{"multi\nline fragment\nwith several lines", "and another one"},
	}

	for _, corpus := range corpora {
		for order := 1; order <= 3; order++ {
			model, err := Build(corpus, order)
			require.NoError(t, err)
			assert.Equal(t, order, model.Order())
			assert.Positive(t, model.StateCount())

			model.Walk(func(state, successors []string) {
				assert.Len(t, state, order)
				assert.NotEmpty(t, successors, "state %v", state)
			})
		}
	}
}

func TestBuildIsIndependentOfSentenceOrder(t *testing.T) {
	forward, err := Build([]string{"x y z", "x y w", "y z x"}, 1)
	require.NoError(t, err)
	backward, err := Build([]string{"y z x", "x y w", "x y z"}, 1)
	require.NoError(t, err)

	assert.Equal(t, snapshot(forward), snapshot(backward))
}

func snapshot(m *Model) map[string][]string {
	out := make(map[string][]string)
	m.Walk(func(state, successors []string) {
		sorted := append([]string(nil), successors...)
		sort.Strings(sorted)
		key := ""
		for _, token := range state {
			key += token + "|"
		}
		out[key] = sorted
	})
	return out
}
