package faults_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/athanasso/photos-widget/internal/faults"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want faults.Kind
	}{
		{"nil", nil, ""},
		{"direct", faults.New(faults.KindAuth, "no token"), faults.KindAuth},
		{"wrapped cause", faults.Wrap(faults.KindTransport, "poll failed", base), faults.KindTransport},
		{"double wrapped", fmt.Errorf("outer: %w", faults.New(faults.KindTimeout, "poll exhausted")), faults.KindTimeout},
		{"context canceled", context.Canceled, faults.KindCanceled},
		{"deadline", context.DeadlineExceeded, faults.KindTimeout},
		{"plain error", base, faults.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := faults.KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapNilCause(t *testing.T) {
	if e := faults.Wrap(faults.KindPersistence, "write", nil); e != nil {
		t.Errorf("Wrap(nil cause) = %v, want nil", e)
	}
}

func TestUnwrap(t *testing.T) {
	base := errors.New("disk full")
	e := faults.Wrap(faults.KindPersistence, "state write failed", base)

	if !errors.Is(e, base) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if !faults.Is(e, faults.KindPersistence) {
		t.Error("faults.Is did not match the kind")
	}
	if faults.Is(e, faults.KindAuth) {
		t.Error("faults.Is matched the wrong kind")
	}
}

func TestErrorString(t *testing.T) {
	e := faults.New(faults.KindValidation, "interval below floor")
	if got, want := e.Error(), "validation: interval below floor"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := faults.Wrap(faults.KindTransport, "session poll", errors.New("connection refused"))
	if got, want := wrapped.Error(), "transport: session poll: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
