package utils_test

import (
	"testing"

	"github.com/programme-lv/runtrack/internal/utils"
	"github.com/stretchr/testify/assert"
)

func TestTrimStrToRect(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		height int
		width  int
		want   string
	}{
		{"empty", "", 2, 2, ""},
		{"fits", "ab\ncd", 2, 2, "ab\ncd"},
		{"too wide", "abcdef\nxy", 2, 3, "abc[...]\nxy"},
		{"too tall", "1\n2\n3\n4", 2, 10, "1\n2\n[...]"},
		{"multibyte", "ēģļš", 1, 2, "ēģ[...]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, utils.TrimStrToRect(tt.in, tt.height, tt.width))
		})
	}
}
