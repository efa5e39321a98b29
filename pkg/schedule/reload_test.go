package schedule

import (
	"testing"
)

func TestNewReloader_RejectsInvalidExpression(t *testing.T) {
	if _, err := NewReloader("not a cron", func() {}); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestNewReloader_EmptyExpressionDisabled(t *testing.T) {
	r, err := NewReloader("", func() { t.Fatal("reload must not run when disabled") })
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	r.Stop()
}

func TestReloader_StartStopIdempotent(t *testing.T) {
	r, err := NewReloader("*/5 * * * *", func() {})
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	r.Stop()
	r.Stop()
}
