package app

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"habithub/internal/hub"
)

func TestNewOperation(t *testing.T) {
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	op := NewOperation("20240115T103000Z", "follow", start)

	if op.Status != StatusSuccess {
		t.Errorf("Status = %q, want %q", op.Status, StatusSuccess)
	}
	if op.Failed() {
		t.Error("Failed() = true for new operation")
	}
	if !op.Started.Equal(start) {
		t.Errorf("Started = %v, want %v", op.Started, start)
	}
}

func TestOperation_Record(t *testing.T) {
	tests := []struct {
		name string
		errs []error
		want string
	}{
		{"no errors", []error{nil, nil}, StatusSuccess},
		{"notice", []error{nil, hub.ErrAlreadyLiked}, StatusNotice},
		{"wrapped notice", []error{fmt.Errorf("liking: %w", hub.ErrAlreadyLiked)}, StatusNotice},
		{"error", []error{hub.ErrNoSuchUser}, StatusError},
		{"error then notice", []error{errors.New("boom"), hub.ErrNotFollowing}, StatusError},
		{"notice then success", []error{hub.ErrNotFollowing, nil}, StatusNotice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation("id", "op", time.Now())
			for _, err := range tt.errs {
				op.Record(err)
			}
			if op.Status != tt.want {
				t.Errorf("Status = %q, want %q", op.Status, tt.want)
			}
		})
	}
}
