// Package outcome carries operation results as values: every wallet
// operation reports either a success payload or a classified failure
// instead of returning an error to its caller.
package outcome

import (
	"encoding/json"
	"errors"
)

type Kind string

const (
	KindPrecondition Kind = "precondition"
	KindUpstream     Kind = "upstream"
	KindDecode       Kind = "decode"
)

type kindedError struct {
	kind Kind
	msg  string
}

func (e *kindedError) Error() string { return e.msg }

func (e *kindedError) Kind() Kind { return e.kind }

// PreconditionError returns a sentinel for an operation invoked before the
// step it depends on.
func PreconditionError(msg string) error {
	return &kindedError{kind: KindPrecondition, msg: msg}
}

// DecodeError returns a sentinel for malformed payloads.
func DecodeError(msg string) error {
	return &kindedError{kind: KindDecode, msg: msg}
}

// Classify reports the failure kind of err. Errors that were not built by
// PreconditionError or DecodeError are upstream failures.
func Classify(err error) Kind {
	var kinded interface{ Kind() Kind }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return KindUpstream
}

type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	err     error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.err }

// Result is either {success: T} or {failure: Failure}.
type Result[T any] struct {
	value   T
	failure *Failure
}

func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail classifies err into a failed result. A nil err still yields a
// failure so callers cannot accidentally report an empty success.
func Fail[T any](err error) Result[T] {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Result[T]{failure: &Failure{Kind: Classify(err), Message: err.Error(), err: err}}
}

// From converts a conventional (value, error) pair.
func From[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Success(v)
}

func (r Result[T]) OK() bool { return r.failure == nil }

func (r Result[T]) Value() T { return r.value }

func (r Result[T]) Failure() *Failure { return r.failure }

func (r Result[T]) Unwrap() (T, error) {
	if r.failure != nil {
		var zero T
		return zero, r.failure
	}
	return r.value, nil
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.failure != nil {
		return json.Marshal(struct {
			Failure *Failure `json:"failure"`
		}{Failure: r.failure})
	}
	return json.Marshal(struct {
		Success T `json:"success"`
	}{Success: r.value})
}
