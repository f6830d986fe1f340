package domain

import "time"

// Invocation is one journaled dispatch outcome.
type Invocation struct {
	ID         string
	Command    string
	Room       string
	UserID     string
	Outcome    string
	RetryAfter time.Duration
	Duration   time.Duration
	At         time.Time
}

// OutcomeOK marks a dispatch that completed without a classified error.
const OutcomeOK = "OK"
