// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{
			name: "short text is one chunk",
			size: 100,
			text: "hello world",
			want: []string{"hello world"},
		},
		{
			name: "paragraph boundaries preferred",
			size: 20,
			text: "aaaa bbbb\n\ncccc dddd\n\neeee",
			want: []string{"aaaa bbbb\n\ncccc dddd", "eeee"},
		},
		{
			name:    "overlap carries trailing words",
			size:    10,
			overlap: 5,
			text:    "a b c d e f g h",
			want:    []string{"a b c d e", "c d e f g", "e f g h"},
		},
		{
			name: "falls back to characters",
			size: 4,
			text: "abcdefghij",
			want: []string{"abcd", "efgh", "ij"},
		},
		{
			name: "oversized paragraph recurses to words",
			size: 10,
			text: "short\n\nthis paragraph is long",
			want: []string{"short", "this", "paragraph", "is long"},
		},
		{
			name: "blank text",
			size: 10,
			text: " \n\n ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Splitter{ChunkSize: tt.size, Overlap: tt.overlap, Separators: DefaultSeparators}
			assert.Equal(t, tt.want, s.Split(tt.text))
		})
	}
}

func TestSplitChunksRespectSize(t *testing.T) {
	s := NewSplitter(120, 30)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	chunks := s.Split(text)
	assert.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, length(c), 120)
	}
}

func TestNewSplitterDefaults(t *testing.T) {
	s := NewSplitter(0, -1)
	assert.Equal(t, DefaultChunkSize, s.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, s.Overlap)

	s = NewSplitter(100, 100)
	assert.Equal(t, 20, s.Overlap)
}
