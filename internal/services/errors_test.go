package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mediaguard/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrToolFailure, "probe", "inspect", "ffprobe exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrToolFailure) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"probe", "inspect", "ffprobe exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrProviderFailure) {
		t.Fatalf("expected provider marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestCategory(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrToolFailure, "probe", "", "", nil), "tool"},
		{services.Wrap(services.ErrCredentialFailure, "lookup", "", "", nil), "credential"},
		{services.Wrap(services.ErrProviderFailure, "lookup", "", "", nil), "provider"},
		{services.Wrap(services.ErrPersistenceFailure, "store", "", "", nil), "persistence"},
		{errors.New("other"), "unknown"},
	}
	for _, tc := range cases {
		if got := services.Category(tc.err); got != tc.want {
			t.Fatalf("Category(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestScopeAccumulates(t *testing.T) {
	ctx := context.Background()
	if scope := services.ScopeFrom(ctx); scope != (services.Scope{}) {
		t.Fatalf("expected empty scope, got %+v", scope)
	}
	ctx = services.WithFileID(ctx, 42)
	ctx = services.WithStage(ctx, "probe")
	ctx = services.WithProvider(ctx, "omdb")
	ctx = services.WithRequestID(ctx, "req-1")

	want := services.Scope{FileID: 42, Stage: "probe", Provider: "omdb", RequestID: "req-1"}
	if got := services.ScopeFrom(ctx); got != want {
		t.Fatalf("scope = %+v, want %+v", got, want)
	}

	lookup := services.WithStage(ctx, "lookup")
	if services.ScopeFrom(lookup).Stage != "lookup" || services.ScopeFrom(ctx).Stage != "probe" {
		t.Fatal("child scope must not leak into the parent context")
	}
	if services.WithStage(ctx, "") != ctx || services.WithFileID(ctx, 0) != ctx {
		t.Fatal("empty values should return the original context")
	}
}

func TestHint(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{services.Wrap(services.ErrToolFailure, "probe", "run", "", nil), "ffprobe"},
		{services.Wrap(services.ErrPersistenceFailure, "store", "write", "", nil), "database"},
		{services.Wrap(services.ErrCredentialFailure, "lookup", "omdb", "", nil), "mediaguard keys"},
		{errors.New("boom"), "check logs"},
	}
	for _, tc := range cases {
		if got := services.Hint(tc.err); !strings.Contains(got, tc.want) {
			t.Fatalf("Hint(%v) = %q, want it to mention %q", tc.err, got, tc.want)
		}
	}
}
