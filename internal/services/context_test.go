package services_test

import (
	"context"
	"testing"

	"texbake/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithStage(ctx, "export")
	ctx = services.WithDescriptor(ctx, "Body")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "export" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if name, ok := services.DescriptorFromContext(ctx); !ok || name != "Body" {
		t.Fatalf("unexpected descriptor: %v %v", name, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
