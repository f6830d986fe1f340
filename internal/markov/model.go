// Package markov builds word-level Markov chains from a corpus of text
// fragments and samples novel sentences from them.
package markov

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyCorpus is returned by Build when no fragment yields a token.
	ErrEmptyCorpus = errors.New("markov: corpus contains no sentences")
	// ErrInvalidOrder is returned by Build for an order below one.
	ErrInvalidOrder = errors.New("markov: order must be at least 1")
)

// Sentinel tokens as seen by callers of Successors and Walk. Internally the
// chain stores them as negative ids, so a corpus token spelled the same way
// can never be confused with them.
const (
	BeginSentinel = "\x02BEGIN"
	EndSentinel   = "\x03END"
)

const (
	beginID = -1
	endID   = -2
)

var lineBreakPattern = regexp.MustCompile(`\s*\n\s*`)

// Model maps a state of Order consecutive tokens to the multiset of tokens
// observed right after it. Duplicated successors encode frequency.
type Model struct {
	order     int
	vocab     []string
	ids       map[string]int
	chain     map[string][]int
	sentences [][]int
}

// SplitSentences tokenizes a corpus. Each line of each fragment becomes one
// sentence of whitespace separated tokens; blank lines are dropped.
func SplitSentences(corpus []string) [][]string {
	var sentences [][]string
	for _, fragment := range corpus {
		for _, line := range lineBreakPattern.Split(fragment, -1) {
			if tokens := strings.Fields(line); len(tokens) > 0 {
				sentences = append(sentences, tokens)
			}
		}
	}
	return sentences
}

// Build trains a model of the given order on corpus.
func Build(corpus []string, order int) (*Model, error) {
	if order < 1 {
		return nil, ErrInvalidOrder
	}

	sentences := SplitSentences(corpus)
	if len(sentences) == 0 {
		return nil, ErrEmptyCorpus
	}

	m := &Model{
		order:     order,
		ids:       make(map[string]int),
		chain:     make(map[string][]int),
		sentences: make([][]int, 0, len(sentences)),
	}
	for _, tokens := range sentences {
		m.add(tokens)
	}
	return m, nil
}

func (m *Model) add(tokens []string) {
	encoded := make([]int, len(tokens))
	for i, token := range tokens {
		encoded[i] = m.intern(token)
	}
	m.sentences = append(m.sentences, encoded)

	padded := make([]int, 0, m.order+len(encoded)+1)
	for i := 0; i < m.order; i++ {
		padded = append(padded, beginID)
	}
	padded = append(padded, encoded...)
	padded = append(padded, endID)

	for i := 0; i+m.order < len(padded); i++ {
		key := stateKey(padded[i : i+m.order])
		m.chain[key] = append(m.chain[key], padded[i+m.order])
	}
}

func (m *Model) intern(token string) int {
	if id, ok := m.ids[token]; ok {
		return id
	}
	id := len(m.vocab)
	m.vocab = append(m.vocab, token)
	m.ids[token] = id
	return id
}

// Order returns the number of tokens in a state.
func (m *Model) Order() int {
	return m.order
}

// SentenceCount returns how many training sentences the model was built from.
func (m *Model) SentenceCount() int {
	return len(m.sentences)
}

// StateCount returns the number of distinct states in the chain.
func (m *Model) StateCount() int {
	return len(m.chain)
}

// Vocabulary returns a copy of every distinct corpus token in first-seen order.
func (m *Model) Vocabulary() []string {
	out := make([]string, len(m.vocab))
	copy(out, m.vocab)
	return out
}

// Successors returns the successor multiset recorded for state, or nil when
// the state was never observed. Use BeginSentinel for leading padding.
func (m *Model) Successors(state ...string) []string {
	if len(state) != m.order {
		return nil
	}
	ids := make([]int, len(state))
	for i, token := range state {
		switch token {
		case BeginSentinel:
			ids[i] = beginID
		case EndSentinel:
			ids[i] = endID
		default:
			id, ok := m.ids[token]
			if !ok {
				return nil
			}
			ids[i] = id
		}
	}
	return m.decodeAll(m.chain[stateKey(ids)])
}

// Walk calls fn for every state with its successor multiset. Iteration order
// is unspecified.
func (m *Model) Walk(fn func(state, successors []string)) {
	for key, successors := range m.chain {
		fn(m.decodeAll(parseStateKey(key)), m.decodeAll(successors))
	}
}

func (m *Model) decode(id int) string {
	switch id {
	case beginID:
		return BeginSentinel
	case endID:
		return EndSentinel
	default:
		return m.vocab[id]
	}
}

func (m *Model) decodeAll(ids []int) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = m.decode(id)
	}
	return out
}

func stateKey(ids []int) string {
	buf := make([]byte, 0, len(ids)*4)
	for i, id := range ids {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(id), 10)
	}
	return string(buf)
}

func parseStateKey(key string) []int {
	parts := strings.Split(key, ",")
	ids := make([]int, len(parts))
	for i, part := range parts {
		ids[i], _ = strconv.Atoi(part)
	}
	return ids
}
