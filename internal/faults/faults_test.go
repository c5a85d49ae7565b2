package faults

import (
	"errors"
	"strings"
	"testing"
)

func TestIs(t *testing.T) {
	err := NewNotFound("src/main.go")
	if !Is(err, CodeNotFound) {
		t.Error("Expected Is to match CodeNotFound")
	}
	if Is(err, CodeRevisionDrift) {
		t.Error("Expected Is not to match CodeRevisionDrift")
	}
	if Is(errors.New("plain"), CodeNotFound) {
		t.Error("Expected Is to reject non-Fault errors")
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(NewStreamFailure(StreamCancelled, "")) {
		t.Error("Expected cancellation fault to be recognized")
	}
	if IsCancelled(NewStreamFailure(StreamTimeout, "")) {
		t.Error("Timeout is not a cancellation")
	}
	if IsCancelled(NewNotFound("x.go")) {
		t.Error("NotFound is not a cancellation")
	}
}

func TestStreamFailureMessages(t *testing.T) {
	tests := []struct {
		reason StreamReason
		want   string
	}{
		{StreamRefused, "could not connect"},
		{StreamStatus, "rejected the request"},
		{StreamMalformed, "malformed response"},
		{StreamTimeout, "timed out"},
		{StreamCancelled, "cancelled"},
	}

	for _, tt := range tests {
		f := NewStreamFailure(tt.reason, "detail")
		if !strings.Contains(f.Message, tt.want) {
			t.Errorf("%s: message %q missing %q", tt.reason, f.Message, tt.want)
		}
	}
}
