// ABOUTME: Tests for the tool registry: uniqueness, ordering, and lookups.
// ABOUTME: Validates that listing exposes descriptors only, in stable order.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

// fakeTool is a minimal Tool for registry tests.
type fakeTool struct {
	id string
}

func (f *fakeTool) Descriptor() Descriptor {
	return Descriptor{ID: f.id, Title: "Fake " + f.id, Description: "test tool"}
}

func (f *fakeTool) Call(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"ok":true}`), nil
}

func TestRegistryRegister(t *testing.T) {
	t.Run("registers tool successfully", func(t *testing.T) {
		registry := NewRegistry(slog.Default())

		if err := registry.Register(&fakeTool{id: "alpha"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tool, ok := registry.Get("alpha")
		if !ok {
			t.Fatal("expected tool to be registered")
		}
		if tool.Descriptor().ID != "alpha" {
			t.Errorf("expected id 'alpha', got '%s'", tool.Descriptor().ID)
		}
	})

	t.Run("rejects duplicate id and keeps the first registration", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		first := &fakeTool{id: "alpha"}

		if err := registry.Register(first); err != nil {
			t.Fatalf("unexpected error on first register: %v", err)
		}

		err := registry.Register(&fakeTool{id: "alpha"})
		if !errors.Is(err, ErrDuplicateTool) {
			t.Fatalf("expected ErrDuplicateTool, got %v", err)
		}

		// First registration must still be active and callable.
		tool, ok := registry.Get("alpha")
		if !ok {
			t.Fatal("expected original tool to remain registered")
		}
		if tool != first {
			t.Error("expected lookup to return the original instance")
		}
		if _, err := tool.Call(context.Background(), nil); err != nil {
			t.Errorf("original tool no longer callable: %v", err)
		}
		if registry.Len() != 1 {
			t.Errorf("expected 1 tool, got %d", registry.Len())
		}
	})

	t.Run("rejects empty id", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		if err := registry.Register(&fakeTool{id: ""}); err == nil {
			t.Fatal("expected error for empty id")
		}
	})
}

func TestRegistryGet(t *testing.T) {
	t.Run("absent tool is not an error", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		if _, ok := registry.Get("missing"); ok {
			t.Error("expected lookup miss")
		}
	})
}

func TestRegistryList(t *testing.T) {
	t.Run("lists descriptors in registration order", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		ids := []string{"gamma", "alpha", "beta"}
		for _, id := range ids {
			if err := registry.Register(&fakeTool{id: id}); err != nil {
				t.Fatalf("registering %s: %v", id, err)
			}
		}

		descs := registry.List()
		if len(descs) != len(ids) {
			t.Fatalf("expected %d descriptors, got %d", len(ids), len(descs))
		}
		for i, id := range ids {
			if descs[i].ID != id {
				t.Errorf("position %d: expected %s, got %s", i, id, descs[i].ID)
			}
		}
	})

	t.Run("repeated listings are identical", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("tool-%d", i)
			if err := registry.Register(&fakeTool{id: id}); err != nil {
				t.Fatalf("registering %s: %v", id, err)
			}
		}

		first := registry.List()
		second := registry.List()
		if len(first) != len(second) {
			t.Fatalf("listing sizes differ: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Errorf("position %d differs: %s vs %s", i, first[i].ID, second[i].ID)
			}
		}
	})

	t.Run("empty registry lists no descriptors", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		if descs := registry.List(); len(descs) != 0 {
			t.Errorf("expected empty listing, got %d", len(descs))
		}
	})
}

func TestRegistryConcurrentLookups(t *testing.T) {
	registry := NewRegistry(slog.Default())
	for i := 0; i < 10; i++ {
		if err := registry.Register(&fakeTool{id: fmt.Sprintf("tool-%d", i)}); err != nil {
			t.Fatalf("registering: %v", err)
		}
	}

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				registry.Get(fmt.Sprintf("tool-%d", i%10))
				registry.List()
			}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
