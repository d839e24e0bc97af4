package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitter_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"Zero Size", 0, 0},
		{"Negative Overlap", 10, -1},
		{"Overlap Equals Size", 10, 10},
		{"Overlap Exceeds Size", 10, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSplitter(tt.size, tt.overlap)
			assert.ErrorIs(t, err, ErrInvalidSplitter)
		})
	}
}

func TestSplitter_Split_DefaultSizes(t *testing.T) {
	sp, err := NewSplitter(1000, 200)
	require.NoError(t, err)

	spans := sp.Split(strings.Repeat("a", 2500))
	require.Len(t, spans, 4)

	assert.Equal(t, []int{0, 800, 1600, 2400}, []int{spans[0].Start, spans[1].Start, spans[2].Start, spans[3].Start})
	assert.Len(t, spans[0].Text, 1000)
	assert.Len(t, spans[1].Text, 1000)
	assert.Len(t, spans[2].Text, 900)
	assert.Len(t, spans[3].Text, 100)
	// The last window repeats the end of the third one.
	assert.Equal(t, spans[2].End, spans[3].End)
	assert.True(t, strings.HasSuffix(spans[2].Text, spans[3].Text))
}

func TestSplitter_Split_Coverage(t *testing.T) {
	sp, err := NewSplitter(10, 3)
	require.NoError(t, err)

	src := "the quick brown fox jumps over the lazy dog"
	spans := sp.Split(src)
	require.NotEmpty(t, spans)

	runes := []rune(src)
	assert.Equal(t, 0, spans[0].Start)
	assert.Equal(t, len(runes), spans[len(spans)-1].End)
	for i, s := range spans {
		assert.LessOrEqual(t, len([]rune(s.Text)), 10)
		assert.Equal(t, string(runes[s.Start:s.End]), s.Text)
		if i > 0 {
			assert.Equal(t, spans[i-1].Start+7, s.Start)
			assert.Less(t, s.Start, spans[i-1].End, "consecutive windows overlap")
		}
	}
}

func TestSplitter_Split_Deterministic(t *testing.T) {
	sp, _ := NewSplitter(7, 2)
	src := strings.Repeat("lorem ipsum ", 20)
	assert.Equal(t, sp.Split(src), sp.Split(src))
}

func TestSplitter_Split_CountsRunes(t *testing.T) {
	sp, _ := NewSplitter(4, 1)
	spans := sp.Split("ñandú")
	require.Len(t, spans, 2)
	assert.Equal(t, "ñand", spans[0].Text)
	assert.Equal(t, "dú", spans[1].Text)
}

func TestSplitter_Split_Empty(t *testing.T) {
	sp, _ := NewSplitter(10, 2)
	assert.Empty(t, sp.Split(""))
	assert.Empty(t, sp.Split("     "))
}

func TestSplitter_Split_ShortText(t *testing.T) {
	sp, _ := NewSplitter(1000, 200)
	spans := sp.Split("hello")
	require.Len(t, spans, 1)
	assert.Equal(t, Span{Start: 0, End: 5, Text: "hello"}, spans[0])
}
