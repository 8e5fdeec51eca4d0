package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendUnique(t *testing.T) {
	tests := []struct {
		name       string
		dst        []string
		candidates []string
		expected   []string
	}{
		{
			name:       "nil destination",
			dst:        nil,
			candidates: []string{"a", "b"},
			expected:   []string{"a", "b"},
		},
		{
			name:       "skips empties",
			dst:        nil,
			candidates: []string{"", "a", ""},
			expected:   []string{"a"},
		},
		{
			name:       "skips values already in destination",
			dst:        []string{"a@x.com"},
			candidates: []string{"b@x.com", "a@x.com"},
			expected:   []string{"a@x.com", "b@x.com"},
		},
		{
			name:       "dedupes among candidates preserving first-seen order",
			dst:        nil,
			candidates: []string{"123", "999", "123"},
			expected:   []string{"123", "999"},
		},
		{
			name:       "no candidates leaves destination untouched",
			dst:        []string{"a"},
			candidates: nil,
			expected:   []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AppendUnique(tt.dst, tt.candidates...)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "trims and dedupes preserving order",
			input:    []string{"  foo ", "bar", "foo", "", "  ", "bar"},
			expected: []string{"foo", "bar"},
		},
		{
			name:     "preserves case",
			input:    []string{"Foo", "foo"},
			expected: []string{"Foo", "foo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DedupeAndTrim(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
