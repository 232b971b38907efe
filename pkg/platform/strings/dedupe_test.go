package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

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
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "capability list with whitespace and repeats",
			input:    []string{" course.read ", "course.submit", "course.read", ""},
			expected: []string{"course.read", "course.submit"},
		},
		{
			name:     "blank-only elements dropped",
			input:    []string{"grade.view", "  ", "", "grade.view"},
			expected: []string{"grade.view"},
		},
		{
			name:     "first occurrence wins",
			input:    []string{"a", "b", "a", "c", "b"},
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "case preserved",
			input:    []string{"Course.Read", "course.read"},
			expected: []string{"Course.Read", "course.read"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
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
			name:     "case folded before dedupe",
			input:    []string{"Course.Read", "course.read", "COURSE.READ"},
			expected: []string{"course.read"},
		},
		{
			name:     "trim and fold together",
			input:    []string{"  GRADE.view ", "grade.VIEW", "report.export"},
			expected: []string{"grade.view", "report.export"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimLower(tt.input))
		})
	}
}
