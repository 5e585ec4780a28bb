package services_test

import (
	"errors"
	"strings"
	"testing"

	"texbake/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "bake", "process batch", "tool exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"bake", "process batch", "tool exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarkerAndDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestEventTypeMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"external tool", services.Wrap(services.ErrExternalTool, "bake", "run", "", nil), "external_tool_failed"},
		{"validation", services.Wrap(services.ErrValidation, "package", "split", "", nil), "validation_failed"},
		{"missing input", services.Wrap(services.ErrNotFound, "export", "decode", "", nil), "input_missing"},
		{"plain error", errors.New("io"), "export_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.EventType(tt.err); got != tt.want {
				t.Fatalf("EventType = %q, want %q", got, tt.want)
			}
		})
	}
}
