// Package content reads the course outline and per-block manifests the timing rules consume.
package content

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Hour lists the blocks of one credit hour in play order.
type Hour struct {
	Number int      `yaml:"hour" json:"hour"`
	Title  string   `yaml:"title" json:"title"`
	Blocks []string `yaml:"blocks" json:"blocks"`
}

// Outline is the course structure: hours 1..N, each with ordered block IDs.
type Outline struct {
	Title string `yaml:"title" json:"title"`
	Hours []Hour `yaml:"hours" json:"hours"`
}

// Position addresses one block by hour and zero-based index.
type Position struct {
	Hour    int    `json:"hour"`
	Index   int    `json:"index"`
	BlockID string `json:"block_id"`
}

// DefaultOutline is the course shipped with the player.
func DefaultOutline() *Outline {
	return &Outline{
		Title: "Continuing Education",
		Hours: []Hour{
			{Number: 1, Title: "Hour 1", Blocks: []string{"block_001", "block_002", "block_003", "block_004", "block_005"}},
			{Number: 2, Title: "Hour 2", Blocks: []string{"block_000_intro", "block_001", "block_002"}},
			{Number: 3, Title: "Hour 3", Blocks: []string{"block_001"}},
			{Number: 4, Title: "Hour 4", Blocks: []string{"block_001"}},
		},
	}
}

// LoadOutline reads a YAML outline. A missing file yields the default outline.
func LoadOutline(path string) (*Outline, error) {
	if path == "" {
		return DefaultOutline(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultOutline(), nil
		}
		return nil, err
	}

	var o Outline
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse outline %s: %w", path, err)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("outline %s: %w", path, err)
	}
	return &o, nil
}

// Validate requires hours numbered 1..N in order, each with unique, non-empty block IDs.
func (o *Outline) Validate() error {
	if len(o.Hours) == 0 {
		return fmt.Errorf("no hours defined")
	}
	for i, h := range o.Hours {
		if h.Number != i+1 {
			return fmt.Errorf("hour %d listed at position %d", h.Number, i+1)
		}
		if len(h.Blocks) == 0 {
			return fmt.Errorf("hour %d has no blocks", h.Number)
		}
		seen := make(map[string]bool, len(h.Blocks))
		for _, id := range h.Blocks {
			if !validBlockID(id) {
				return fmt.Errorf("hour %d: invalid block id %q", h.Number, id)
			}
			if seen[id] {
				return fmt.Errorf("hour %d: duplicate block %s", h.Number, id)
			}
			seen[id] = true
		}
	}
	return nil
}

// validBlockID keeps block IDs usable as a single path segment.
func validBlockID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
		default:
			return false
		}
	}
	return true
}

func (o *Outline) HourCount() int { return len(o.Hours) }

// Blocks returns the block IDs of hour, or nil for an unknown hour.
func (o *Outline) Blocks(hour int) []string {
	if hour < 1 || hour > len(o.Hours) {
		return nil
	}
	return o.Hours[hour-1].Blocks
}

// At resolves hour and index to a position.
func (o *Outline) At(hour, index int) (Position, bool) {
	blocks := o.Blocks(hour)
	if index < 0 || index >= len(blocks) {
		return Position{}, false
	}
	return Position{Hour: hour, Index: index, BlockID: blocks[index]}, true
}

// Next returns the following block, crossing into the next hour after an hour's last
// block. The last block of the last hour has no successor.
func (o *Outline) Next(p Position) (Position, bool) {
	if next, ok := o.At(p.Hour, p.Index+1); ok {
		return next, true
	}
	return o.At(p.Hour+1, 0)
}

// Prev returns the preceding block, crossing back to the previous hour's last block.
func (o *Outline) Prev(p Position) (Position, bool) {
	if p.Index > 0 {
		return o.At(p.Hour, p.Index-1)
	}
	prev := o.Blocks(p.Hour - 1)
	if len(prev) == 0 {
		return Position{}, false
	}
	return o.At(p.Hour-1, len(prev)-1)
}

// All returns every position in play order.
func (o *Outline) All() []Position {
	var out []Position
	for _, h := range o.Hours {
		for i, id := range h.Blocks {
			out = append(out, Position{Hour: h.Number, Index: i, BlockID: id})
		}
	}
	return out
}
