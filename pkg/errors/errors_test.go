package errors

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		capacity  bool
		kind      string
	}{
		{"transient", Transient(context.DeadlineExceeded, "upload timed out"), true, false, "transient"},
		{"capacity", Capacity(fmt.Errorf("429"), "rate limited"), true, true, "capacity"},
		{"permanent", Permanent(fmt.Errorf("bad url"), "malformed stream url"), false, false, "permanent"},
		{"state conflict", StateConflict("not recording"), false, false, "state_conflict"},
		{"wrapped permanent", fmt.Errorf("describe: %w", Permanent(nil, "unsupported")), false, false, "permanent"},
		{"plain error", fmt.Errorf("connection reset"), true, false, "transient"},
		{"nil", nil, false, false, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
			if got := IsCapacity(tt.err); got != tt.capacity {
				t.Errorf("IsCapacity() = %v, want %v", got, tt.capacity)
			}
			if got := Kind(tt.err); got != tt.kind {
				t.Errorf("Kind() = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{CodeStateConflict, http.StatusConflict},
		{CodePermanentInput, http.StatusUnprocessableEntity},
		{CodeCapacity, http.StatusTooManyRequests},
		{CodeTransientIO, http.StatusServiceUnavailable},
		{CodeRuleNotFound, http.StatusNotFound},
		{CodeValidation, http.StatusBadRequest},
		{CodeDatabaseError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code, "x").HTTPStatus; got != tt.want {
				t.Errorf("HTTPStatus = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAsAppErrorUnwrapsChain(t *testing.T) {
	inner := New(CodeRuleNotFound, "alert rule not found")
	err := fmt.Errorf("update rule: %w", inner)

	if !IsAppError(err) {
		t.Fatal("expected wrapped AppError to be detected")
	}
	if got := AsAppError(err); got != inner {
		t.Errorf("AsAppError() = %v, want %v", got, inner)
	}
	if got := AsAppError(fmt.Errorf("boom")).Code; got != CodeUnknown {
		t.Errorf("code = %s, want %s", got, CodeUnknown)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"deadline", context.DeadlineExceeded, CodeTransientIO},
		{"net timeout", timeoutErr{}, CodeTransientIO},
		{"rate limited", fmt.Errorf("status 429: Too Many Requests"), CodeCapacity},
		{"quota", fmt.Errorf("Requests rate limit exceeded, quota used up"), CodeCapacity},
		{"bad request", fmt.Errorf("error, status code: 400, message: invalid video url"), CodePermanentInput},
		{"gateway", fmt.Errorf("status code: 502, bad gateway"), CodeTransientIO},
		{"unknown", fmt.Errorf("something odd"), CodeTransientIO},
		{"already classified", Permanent(nil, "unsupported"), CodePermanentInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err, "call failed").Code; got != tt.want {
				t.Errorf("Classify() code = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{http.StatusTooManyRequests, CodeCapacity},
		{http.StatusServiceUnavailable, CodeTransientIO},
		{http.StatusRequestTimeout, CodeTransientIO},
		{http.StatusBadRequest, CodePermanentInput},
		{http.StatusForbidden, CodePermanentInput},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := ClassifyStatus(fmt.Errorf("boom"), tt.status, "x").Code; got != tt.want {
				t.Errorf("ClassifyStatus(%d) = %s, want %s", tt.status, got, tt.want)
			}
		})
	}
}
