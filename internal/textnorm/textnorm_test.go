package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "MUY BUENO", "muy bueno"},
		{"folds accents", "atención rápida", "atencion rapida"},
		{"folds enye", "el niño pequeño", "el nino pequeno"},
		{"collapses spaces", "muy    bueno", "muy bueno"},
		{"collapses tabs and newlines", "muy\t\nbueno", "muy bueno"},
		{"trims edges", "  hola  ", "hola"},
		{"keeps digits and punctuation", "n/a 100%", "n/a 100%"},
		{"empty stays empty", "", ""},
		{"whitespace only", "   \t\n", ""},
		{"nbsp treated as space", "muy\u00a0bueno", "muy bueno"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Atención al Cliente", "  MUY   lento  ", "ñandú"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once))
	}
}
