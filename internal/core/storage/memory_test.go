package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/neilberkman/pitchside/internal/core/models"
)

func TestMemoryKV(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: got %v, want ErrNotFound", err)
	}

	if err := m.Put(ctx, KeyToken, []byte("abc")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := m.Get(ctx, KeyToken)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("Get() = %q, want abc", got)
	}

	// mutating the returned slice must not leak into the store
	got[0] = 'x'
	again, _ := m.Get(ctx, KeyToken)
	if string(again) != "abc" {
		t.Errorf("store was mutated through returned slice: %q", again)
	}

	if err := m.Delete(ctx, KeyToken); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(ctx, KeyToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: got %v, want ErrNotFound", err)
	}
}

func TestMemoryHistory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	sessions := []models.Session{
		{SessionID: "a", Title: "first"},
		{SessionID: "b", Title: "second"},
	}
	if err := m.SaveHistory(ctx, sessions); err != nil {
		t.Fatalf("SaveHistory() error = %v", err)
	}
	if err := m.RemoveSession(ctx, "a"); err != nil {
		t.Fatalf("RemoveSession() error = %v", err)
	}

	got, err := m.LoadHistory(ctx)
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(got) != 1 || got[0].SessionID != "b" {
		t.Errorf("LoadHistory() = %+v, want only session b", got)
	}
	if sessions[0].SessionID != "a" {
		t.Errorf("caller slice was modified: %+v", sessions)
	}
}
