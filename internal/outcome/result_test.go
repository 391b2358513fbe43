package outcome

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

var errNotReady = PreconditionError("not ready")

func TestClassifyWrappedSentinels(t *testing.T) {
	if got := Classify(fmt.Errorf("login: %w", errNotReady)); got != KindPrecondition {
		t.Fatalf("expected precondition, got %s", got)
	}
	if got := Classify(fmt.Errorf("%w: bad segment", DecodeError("malformed"))); got != KindDecode {
		t.Fatalf("expected decode, got %s", got)
	}
	if got := Classify(errors.New("connection refused")); got != KindUpstream {
		t.Fatalf("expected upstream, got %s", got)
	}
}

func TestResultJSONShapes(t *testing.T) {
	ok, err := json.Marshal(Success([]string{"0xabc"}))
	if err != nil {
		t.Fatalf("marshal success: %v", err)
	}
	if string(ok) != `{"success":["0xabc"]}` {
		t.Fatalf("unexpected success json: %s", ok)
	}

	failed, err := json.Marshal(Fail[string](errNotReady))
	if err != nil {
		t.Fatalf("marshal failure: %v", err)
	}
	if string(failed) != `{"failure":{"kind":"precondition","message":"not ready"}}` {
		t.Fatalf("unexpected failure json: %s", failed)
	}
}

func TestResultUnwrapKeepsCause(t *testing.T) {
	res := From("", fmt.Errorf("wrap: %w", errNotReady))
	if res.OK() {
		t.Fatal("expected failed result")
	}
	_, err := res.Unwrap()
	if !errors.Is(err, errNotReady) {
		t.Fatalf("expected errors.Is to reach sentinel, got %v", err)
	}
	if Fail[int](nil).OK() {
		t.Fatal("nil error must still produce a failure")
	}
}
