package plasa

import (
	"fmt"
	"strings"
)

type Account = string

// Address is a contract address (space, points, question, option or stamp).
type Address = string

// Timestamp is a unix time in milliseconds.
type Timestamp = int64

// Anchor is a single point in the ledger's timeline. Every read that goes into one
// view is served as of the same Anchor.
type Anchor struct {
	Height int64     `json:"height"`
	Time   Timestamp `json:"time"`
}

func (a Anchor) String() string {
	return fmt.Sprintf("%d@%d", a.Height, a.Time)
}

// After reports whether a is strictly later than b in the ledger's timeline.
func (a Anchor) After(b Anchor) bool {
	return a.Height > b.Height
}

func (a Anchor) IsZero() bool {
	return a.Height == 0 && a.Time == 0
}

// Viewer is the account a view is computed for, plus an optional linked off-chain
// username supplied by whatever verified the account.
type Viewer struct {
	Account  Account `json:"account"`
	Username string  `json:"username,omitempty"`
}

type QuestionType int

const (
	QuestionNull QuestionType = iota
	QuestionOpen
	QuestionFixed
)

func (q QuestionType) String() string {
	switch q {
	case QuestionOpen:
		return "Open"
	case QuestionFixed:
		return "Fixed"
	default:
		return "Null"
	}
}

func ParseQuestionType(s string) QuestionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open", "1":
		return QuestionOpen
	case "fixed", "2":
		return QuestionFixed
	default:
		return QuestionNull
	}
}

func (q QuestionType) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

func (q *QuestionType) UnmarshalText(b []byte) error {
	*q = ParseQuestionType(string(b))
	return nil
}

type StampType int

const (
	StampNull StampType = iota
	StampAccountOwnership
	StampFollowerSince
)

func (s StampType) String() string {
	switch s {
	case StampAccountOwnership:
		return "AccountOwnership"
	case StampFollowerSince:
		return "FollowerSince"
	default:
		return "Null"
	}
}

func ParseStampType(s string) StampType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accountownership", "1":
		return StampAccountOwnership
	case "followersince", "2":
		return StampFollowerSince
	default:
		return StampNull
	}
}

func (s StampType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StampType) UnmarshalText(b []byte) error {
	*s = ParseStampType(string(b))
	return nil
}
