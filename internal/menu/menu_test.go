package menu

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/petrijr/pizzaflow/internal/classifier"
)

func newTestMenu(t *testing.T) *SQLiteMenu {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = db.Close()
	})

	m, err := NewSQLiteMenu(db)
	if err != nil {
		t.Fatalf("NewSQLiteMenu failed: %v", err)
	}
	return m
}

func TestStatic_Flavors(t *testing.T) {
	s := Static{"cheese", "pepperoni"}
	got, err := s.Flavors(context.Background())
	if err != nil {
		t.Fatalf("Flavors error: %v", err)
	}
	got[0] = "changed"
	if s[0] != "cheese" {
		t.Fatalf("Flavors returned the backing slice")
	}
}

func TestSQLiteMenu_AddAndList(t *testing.T) {
	ctx := context.Background()
	m := newTestMenu(t)

	if err := m.Add(ctx, classifier.DefaultFlavors...); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	// Duplicates and padding are normalized away.
	if err := m.Add(ctx, " Cheese ", ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, err := m.Flavors(ctx)
	if err != nil {
		t.Fatalf("Flavors failed: %v", err)
	}
	want := []string{"cheese", "margherita", "pepperoni", "vegetarian"}
	if len(got) != len(want) {
		t.Fatalf("Flavors=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Flavors=%v, want %v", got, want)
		}
	}
}

func TestSQLiteMenu_SetAvailable(t *testing.T) {
	ctx := context.Background()
	m := newTestMenu(t)
	_ = m.Add(ctx, "cheese", "pepperoni")

	if err := m.SetAvailable(ctx, "Pepperoni", false); err != nil {
		t.Fatalf("SetAvailable failed: %v", err)
	}
	got, _ := m.Flavors(ctx)
	if len(got) != 1 || got[0] != "cheese" {
		t.Fatalf("Flavors=%v, want [cheese]", got)
	}

	// Re-adding restores availability.
	_ = m.Add(ctx, "pepperoni")
	got, _ = m.Flavors(ctx)
	if len(got) != 2 {
		t.Fatalf("Flavors=%v, want 2 entries", got)
	}

	if err := m.SetAvailable(ctx, "anchovy", true); !errors.Is(err, ErrFlavorNotFound) {
		t.Fatalf("expected ErrFlavorNotFound, got %v", err)
	}
}

func TestSQLiteMenu_FeedsClassifier(t *testing.T) {
	ctx := context.Background()
	m := newTestMenu(t)
	_ = m.Add(ctx, "funghi")

	flavors, err := m.Flavors(ctx)
	if err != nil {
		t.Fatalf("Flavors failed: %v", err)
	}
	c := classifier.New(flavors, nil)

	got, _ := c.Classify(ctx, "Funghi")
	if !got.FlavorRecognized {
		t.Fatalf("expected funghi to be recognized from the menu")
	}
	got, _ = c.Classify(ctx, "pepperoni")
	if got.FlavorRecognized {
		t.Fatalf("pepperoni is not on this menu")
	}
}

func TestOpenSQLite_Memory(t *testing.T) {
	m, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer m.Close()

	if err := m.Add(context.Background(), "cheese"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	got, _ := m.Flavors(context.Background())
	if len(got) != 1 {
		t.Fatalf("Flavors=%v, want [cheese]", got)
	}
}
