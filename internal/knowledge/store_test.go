package knowledge

import (
	"context"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(&Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

// TestStorePutGet tests document round-trips
func TestStorePutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &Document{
		Topic:   "ncc",
		Title:   "NCC definition",
		Content: "Net contribution to company, measured monthly per project.",
		Tags:    []string{"revenue", "finance"},
	}

	if err := store.Put(ctx, doc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "NCC")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.Title != "NCC definition" {
		t.Errorf("Unexpected title: %s", got.Title)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be set")
	}
}

// TestStoreGetMissing tests lookups of unknown topics
func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Get(context.Background(), "nope"); err == nil {
		t.Fatal("Expected error for missing document")
	}
}

// TestStorePutRequiresTopic tests validation of empty topics
func TestStorePutRequiresTopic(t *testing.T) {
	store := newTestStore(t)

	if err := store.Put(context.Background(), &Document{Title: "no topic"}); err == nil {
		t.Fatal("Expected error for document without topic")
	}
}

// TestStoreSearch tests substring search across topic, title and tags
func TestStoreSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, &Document{Topic: "revenue-gaps", Title: "Revenue gaps", Content: "..."})
	store.Put(ctx, &Document{Topic: "attendance", Title: "Office attendance", Content: "...", Tags: []string{"hr"}})

	docs, err := store.Search(ctx, "revenue")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(docs))
	}

	docs, err = store.Search(ctx, "hr")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(docs) != 1 || docs[0].Topic != "attendance" {
		t.Errorf("Expected attendance document via tag search, got %v", docs)
	}
}

// TestStoreDelete tests document removal
func TestStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, &Document{Topic: "tmp", Title: "Temp", Content: "x"})

	if err := store.Delete(ctx, "tmp"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, "tmp"); err == nil {
		t.Error("Expected error after delete")
	}
}

// TestContextFor tests prompt context assembly from relevant documents
func TestContextFor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Put(ctx, &Document{
		Topic:   "ncc",
		Title:   "NCC definition",
		Content: "NCC is net contribution to company.",
	})
	store.Put(ctx, &Document{
		Topic:   "attendance",
		Title:   "Attendance tracking",
		Content: "Attendance is tracked per office per week.",
	})

	out, err := store.ContextFor(ctx, "What is the NCC trend by region?")
	if err != nil {
		t.Fatalf("ContextFor failed: %v", err)
	}

	if out == "" {
		t.Fatal("Expected non-empty context for matching topic")
	}
	if !strings.Contains(out, "net contribution") {
		t.Errorf("Expected NCC content in context, got %q", out)
	}
	if strings.Contains(out, "Attendance is tracked") {
		t.Error("Did not expect unrelated document in context")
	}
}
