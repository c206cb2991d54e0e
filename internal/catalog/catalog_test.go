package catalog

import (
	"errors"
	"testing"

	"violin-coach-service/internal/service/bow"
)

func TestLoad_EmbeddedCatalog(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("embedded catalog failed to load: %v", err)
	}

	if len(c.Pieces()) < 3 {
		t.Errorf("expected at least 3 pieces, got %d", len(c.Pieces()))
	}

	def := c.Default()
	if def.Name != DefaultPieceName {
		t.Errorf("default piece = %q, want %q", def.Name, DefaultPieceName)
	}
	if len(def.BowPattern) != 32 {
		t.Errorf("default bow pattern length = %d, want 32", len(def.BowPattern))
	}
	for i, d := range def.BowPattern {
		want := bow.Down
		if i%2 == 1 {
			want = bow.Up
		}
		if d != want {
			t.Fatalf("default pattern entry %d = %s, want %s", i, d, want)
		}
	}
}

func TestLoad_AllPatternsAlternate(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range c.Pieces() {
		for i := 1; i < len(p.BowPattern); i++ {
			if p.BowPattern[i] == p.BowPattern[i-1] {
				t.Errorf("piece %q: pattern repeats %s at %d", p.Name, p.BowPattern[i], i)
			}
		}
	}
}

func TestGet_CaseInsensitive(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	p, err := c.Get("open string cycle")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if p.Name != "Open String Cycle" {
		t.Errorf("got piece %q", p.Name)
	}
}

func TestGet_Unknown(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Get("Flight of the Bumblebee")
	if !errors.Is(err, ErrUnknownPiece) {
		t.Errorf("expected ErrUnknownPiece, got %v", err)
	}
}

func TestParse_RejectsInvalidPatterns(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty catalog", "pieces: []"},
		{"missing name", "pieces:\n  - bowPattern: [down, up]"},
		{"empty pattern", "pieces:\n  - name: X\n    bowPattern: []"},
		{"non-playable entry", "pieces:\n  - name: X\n    bowPattern: [down, hold]"},
		{"repeated direction", "pieces:\n  - name: X\n    bowPattern: [down, down]"},
		{"bad note", "pieces:\n  - name: X\n    bowPattern: [down, up]\n    notes: [Z9]"},
		{"malformed yaml", "pieces: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestOpenStringCycle_MatchesOpenStringRule(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	p, err := c.Get("Open String Cycle")
	if err != nil {
		t.Fatal(err)
	}

	if len(p.Notes) != len(p.BowPattern) {
		t.Fatalf("notes and bow pattern lengths differ: %d vs %d", len(p.Notes), len(p.BowPattern))
	}
	// The warm-up is built so each stroke direction is the one the note's
	// string expects.
	for i, n := range p.Notes {
		letter := n[:1]
		want := bow.Up
		if letter == "G" || letter == "D" {
			want = bow.Down
		}
		if p.BowPattern[i] != want {
			t.Errorf("entry %d: note %s bowed %s, want %s", i, n, p.BowPattern[i], want)
		}
	}
}
