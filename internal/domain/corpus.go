package domain

import (
	"errors"
	"time"
)

// Corpus is the ordered text history of one owner, one fragment per comment.
type Corpus struct {
	Owner     string    `json:"owner"`
	Fragments []string  `json:"fragments"`
	FetchedAt time.Time `json:"fetched_at"`
}

// IsEmpty reports whether the corpus carries no fragments.
func (c *Corpus) IsEmpty() bool {
	return c == nil || len(c.Fragments) == 0
}

// ErrCorpusNotFound is returned by corpus sources when the owner does not exist.
var ErrCorpusNotFound = errors.New("corpus owner not found")
