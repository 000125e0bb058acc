package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrimUpper(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{
			name:     "uppercases and dedupes",
			input:    []string{"staff", "Staff", " STAFF "},
			expected: []string{"STAFF"},
		},
		{
			name:     "keeps first occurrence order",
			input:    []string{"admin", "subscriber", "Admin"},
			expected: []string{"ADMIN", "SUBSCRIBER"},
		},
		{
			name:     "drops blanks",
			input:    []string{"", "  ", "supervisor"},
			expected: []string{"SUPERVISOR"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrimUpper(tt.input))
		})
	}
}
