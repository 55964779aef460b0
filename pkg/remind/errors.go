package remind

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a ParseError.
type ErrorKind int

const (
	// Unrecognized means no rule matched (part of) the input.
	Unrecognized ErrorKind = iota + 1
	// OutOfRange means a numeric component is outside calendar/clock bounds.
	OutOfRange
	// CorruptedRule means a serialized repeat rule could not be decoded.
	CorruptedRule
)

func (k ErrorKind) String() string {
	switch k {
	case Unrecognized:
		return "unrecognized"
	case OutOfRange:
		return "out of range"
	case CorruptedRule:
		return "corrupted rule"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *ParseError of the same kind.
var (
	ErrUnrecognized  = errors.New("remind: unrecognized expression")
	ErrOutOfRange    = errors.New("remind: value out of range")
	ErrCorruptedRule = errors.New("remind: corrupted repeat rule")
)

// ParseError is returned for expected bad-input outcomes.
type ParseError struct {
	Kind   ErrorKind
	Input  string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remind: %s: %q", e.Kind, e.Input)
	}
	return fmt.Sprintf("remind: %s: %q: %s", e.Kind, e.Input, e.Detail)
}

func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrUnrecognized:
		return e.Kind == Unrecognized
	case ErrOutOfRange:
		return e.Kind == OutOfRange
	case ErrCorruptedRule:
		return e.Kind == CorruptedRule
	}
	return false
}

func unrecognized(input, detail string) error {
	return &ParseError{Kind: Unrecognized, Input: input, Detail: detail}
}

func outOfRange(input, detail string) error {
	return &ParseError{Kind: OutOfRange, Input: input, Detail: detail}
}

func corrupted(input, detail string) error {
	return &ParseError{Kind: CorruptedRule, Input: input, Detail: detail}
}

// KindOf returns the ParseError kind of err, or 0 if err is not a ParseError.
func KindOf(err error) ErrorKind {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
