package engine

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"clipbot/internal/storage"
	logx "clipbot/pkg/logx"
)

func TestLedgerRecordAndSeen(t *testing.T) {
	t.Parallel()

	l := NewLedger(nil, 10, logx.Logger{})
	ctx := context.Background()

	added, err := l.Record(ctx, "https://cdn.example/a.mp4")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !added {
		t.Fatal("first Record: want added=true")
	}
	if !l.Seen("https://cdn.example/a.mp4") {
		t.Fatal("Seen after Record: want true")
	}

	added, err = l.Record(ctx, "https://cdn.example/a.mp4")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if added {
		t.Fatal("duplicate Record: want added=false")
	}
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}
}

func TestLedgerEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	l := NewLedger(store, 3, logx.Logger{})
	ctx := context.Background()

	urls := make([]string, 5)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://cdn.example/%d.mp4", i)
		if _, err := l.Record(ctx, urls[i]); err != nil {
			t.Fatalf("Record(%s): %v", urls[i], err)
		}
	}

	if l.Len() != 3 {
		t.Fatalf("Len = %d, want 3", l.Len())
	}
	for _, u := range urls[:2] {
		if l.Seen(u) {
			t.Fatalf("Seen(%s) = true, want evicted", u)
		}
	}
	for _, u := range urls[2:] {
		if !l.Seen(u) {
			t.Fatalf("Seen(%s) = false, want retained", u)
		}
	}

	// Durable log and in-memory view must agree after truncation.
	persisted, err := store.LoadSent(ctx)
	if err != nil {
		t.Fatalf("LoadSent: %v", err)
	}
	if !reflect.DeepEqual(persisted, urls[2:]) {
		t.Fatalf("persisted = %v, want %v", persisted, urls[2:])
	}
}

func TestLedgerHydrateDedupesAndTruncates(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	ctx := context.Background()

	// A log grown past the bound, with a duplicate entry.
	for _, u := range []string{"u0", "u1", "u1", "u2", "u3", "u4"} {
		if err := store.AppendSent(ctx, "https://cdn.example/"+u+".mp4"); err != nil {
			t.Fatalf("AppendSent: %v", err)
		}
	}

	l := NewLedger(store, 3, logx.Logger{})
	if err := l.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if l.Len() != 3 {
		t.Fatalf("Len = %d, want 3", l.Len())
	}
	if l.Seen("https://cdn.example/u0.mp4") {
		t.Fatal("oldest entry should be trimmed on hydrate")
	}
	if !l.Seen("https://cdn.example/u4.mp4") {
		t.Fatal("newest entry should survive hydrate")
	}

	persisted, err := store.LoadSent(ctx)
	if err != nil {
		t.Fatalf("LoadSent: %v", err)
	}
	if len(persisted) != 3 {
		t.Fatalf("persisted %d entries, want 3", len(persisted))
	}
}

func TestLedgerIgnoresEmptyURL(t *testing.T) {
	t.Parallel()

	l := NewLedger(nil, 10, logx.Logger{})
	added, err := l.Record(context.Background(), "")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if added || l.Len() != 0 {
		t.Fatalf("empty url recorded: added=%v len=%d", added, l.Len())
	}
}
