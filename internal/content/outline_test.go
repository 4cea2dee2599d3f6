package content_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/ceplayer/internal/content"
)

func TestDefaultOutline(t *testing.T) {
	o := content.DefaultOutline()
	require.NoError(t, o.Validate())
	assert.Equal(t, 4, o.HourCount())
	assert.Len(t, o.Blocks(1), 5)
	assert.Equal(t, []string{"block_000_intro", "block_001", "block_002"}, o.Blocks(2))
	assert.Nil(t, o.Blocks(5))
	assert.Len(t, o.All(), 10)
}

func TestOutline_Navigation(t *testing.T) {
	o := content.DefaultOutline()

	tests := []struct {
		name     string
		from     content.Position
		next     bool
		wantNext content.Position
		prev     bool
		wantPrev content.Position
	}{
		{
			name:     "first block",
			from:     content.Position{Hour: 1, Index: 0, BlockID: "block_001"},
			next:     true,
			wantNext: content.Position{Hour: 1, Index: 1, BlockID: "block_002"},
		},
		{
			name:     "end of hour crosses forward",
			from:     content.Position{Hour: 1, Index: 4, BlockID: "block_005"},
			next:     true,
			wantNext: content.Position{Hour: 2, Index: 0, BlockID: "block_000_intro"},
			prev:     true,
			wantPrev: content.Position{Hour: 1, Index: 3, BlockID: "block_004"},
		},
		{
			name:     "start of hour crosses back",
			from:     content.Position{Hour: 3, Index: 0, BlockID: "block_001"},
			next:     true,
			wantNext: content.Position{Hour: 4, Index: 0, BlockID: "block_001"},
			prev:     true,
			wantPrev: content.Position{Hour: 2, Index: 2, BlockID: "block_002"},
		},
		{
			name:     "last block of course",
			from:     content.Position{Hour: 4, Index: 0, BlockID: "block_001"},
			prev:     true,
			wantPrev: content.Position{Hour: 3, Index: 0, BlockID: "block_001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := o.Next(tt.from)
			assert.Equal(t, tt.next, ok)
			if ok {
				assert.Equal(t, tt.wantNext, next)
			}
			prev, ok := o.Prev(tt.from)
			assert.Equal(t, tt.prev, ok)
			if ok {
				assert.Equal(t, tt.wantPrev, prev)
			}
		})
	}
}

func TestLoadOutline(t *testing.T) {
	dir := t.TempDir()

	o, err := content.LoadOutline(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, content.DefaultOutline(), o)

	path := filepath.Join(dir, "course.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
title: Salon Safety
hours:
  - hour: 1
    title: Sanitation
    blocks: [intro, tools]
  - hour: 2
    title: Law
    blocks: [rules]
`), 0o644))
	o, err = content.LoadOutline(path)
	require.NoError(t, err)
	assert.Equal(t, "Salon Safety", o.Title)
	assert.Equal(t, 2, o.HourCount())
	assert.Equal(t, "Law", o.Hours[1].Title)

	pos, ok := o.At(1, 1)
	require.True(t, ok)
	assert.Equal(t, "tools", pos.BlockID)
}

func TestLoadOutline_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"not yaml", "hours: [", "parse outline"},
		{"no hours", "title: x\n", "no hours"},
		{"gap", "hours:\n  - hour: 2\n    blocks: [a]\n", "position 1"},
		{"empty hour", "hours:\n  - hour: 1\n    blocks: []\n", "no blocks"},
		{"duplicate", "hours:\n  - hour: 1\n    blocks: [a, a]\n", "duplicate"},
		{"path escape", "hours:\n  - hour: 1\n    blocks: [\"../x\"]\n", "invalid block id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "course.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := content.LoadOutline(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
