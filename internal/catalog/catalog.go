// Package catalog holds the reference pieces a session can be practiced
// against: the expected bow-direction pattern and the note sequence of
// each piece. Definitions ship embedded in the binary.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"violin-coach-service/internal/service/bow"
	"violin-coach-service/internal/service/pitch"
)

//go:embed pieces.yaml
var piecesYAML []byte

// DefaultPieceName is the piece a session falls back to when none is named.
const DefaultPieceName = "Twinkle Twinkle Little Star"

// ErrUnknownPiece is returned when a piece is not in the catalog.
var ErrUnknownPiece = errors.New("unknown piece")

// Piece is one reference performance.
type Piece struct {
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	BowPattern  []bow.Direction `yaml:"bowPattern" json:"bowPattern"`
	Notes       []string        `yaml:"notes" json:"notes"`
}

// Catalog is the loaded piece collection.
type Catalog struct {
	pieces []Piece
	byName map[string]int
}

// Load parses and validates the embedded piece definitions.
func Load() (*Catalog, error) {
	return Parse(piecesYAML)
}

// Parse builds a catalog from raw YAML.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Pieces []Piece `yaml:"pieces"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse piece catalog: %w", err)
	}
	if len(doc.Pieces) == 0 {
		return nil, errors.New("piece catalog is empty")
	}

	c := &Catalog{
		pieces: doc.Pieces,
		byName: make(map[string]int, len(doc.Pieces)),
	}
	for i, p := range doc.Pieces {
		if err := validatePiece(p); err != nil {
			return nil, fmt.Errorf("piece %q: %w", p.Name, err)
		}
		c.byName[strings.ToLower(p.Name)] = i
	}
	return c, nil
}

func validatePiece(p Piece) error {
	if p.Name == "" {
		return errors.New("missing name")
	}
	if len(p.BowPattern) == 0 {
		return errors.New("empty bow pattern")
	}
	for i, d := range p.BowPattern {
		if !d.Playable() {
			return fmt.Errorf("bow pattern entry %d: %q is not a playable direction", i, d)
		}
		// Transition-based matching cannot observe a repeated direction,
		// so patterns must alternate.
		if i > 0 && d == p.BowPattern[i-1] {
			return fmt.Errorf("bow pattern entries %d and %d repeat %q", i-1, i, d)
		}
	}
	for i, n := range p.Notes {
		if pitch.Frequency(n) == 0 {
			return fmt.Errorf("note %d: %q is not a valid note name", i, n)
		}
	}
	return nil
}

// Get returns the named piece, matching case-insensitively.
func (c *Catalog) Get(name string) (*Piece, error) {
	idx, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPiece, name)
	}
	return &c.pieces[idx], nil
}

// Default returns the default practice piece.
func (c *Catalog) Default() *Piece {
	if idx, ok := c.byName[strings.ToLower(DefaultPieceName)]; ok {
		return &c.pieces[idx]
	}
	return &c.pieces[0]
}

// Pieces returns all pieces in catalog order.
func (c *Catalog) Pieces() []Piece {
	return append([]Piece(nil), c.pieces...)
}
