package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestWrapMatchesSentinelAndCause(t *testing.T) {
	err := Wrap(ErrUnreadableFile, fs.ErrPermission, "reading %s", "a.xml")
	if !errors.Is(err, ErrUnreadableFile) {
		t.Fatalf("expected sentinel match, got %v", err)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("expected cause match, got %v", err)
	}
	want := "unreadable file: reading a.xml: permission denied"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapNilCause(t *testing.T) {
	if err := Wrap(ErrConnection, nil, "ping"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"resource write", New(ErrResourceWrite, "store"), false},
		{"unreadable", fmt.Errorf("walk: %w", New(ErrUnreadableFile, "x")), false},
		{"connection", New(ErrConnection, "ping"), true},
		{"collection", New(ErrCollectionResolution, "create"), false},
		{"collection exists", New(ErrCollectionExists, "/db/a"), false},
		{"collection over lost connection", Wrap(ErrCollectionResolution, New(ErrConnection, "reset"), "create"), true},
		{"query", New(ErrQueryExecution, "stream"), true},
		{"cancelled", context.Canceled, true},
		{"deadline", fmt.Errorf("walk: %w", context.DeadlineExceeded), true},
		{"unclassified", errors.New("boom"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{New(ErrInvalidInput, "bad"), ExitInvalidInput},
		{New(ErrUnknownDriver, "mongo"), ExitInvalidInput},
		{Wrap(ErrConnection, errors.New("refused"), "dial"), ExitConnection},
		{Newf(ErrCollectionResolution, "create %s", "/db/LabelMe"), ExitCollectionResolution},
		{New(ErrCollectionNotFound, "/db/x"), ExitCollectionResolution},
		{New(ErrQueryExecution, "stream"), ExitQueryExecution},
		{errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
