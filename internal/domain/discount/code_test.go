package discount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Code
		wantErr bool
	}{
		{name: "plain uppercase", raw: "SAVE20", want: "SAVE20"},
		{name: "lowercase is uppercased", raw: "save20", want: "SAVE20"},
		{name: "surrounding whitespace trimmed", raw: "  prospectinggoat12  ", want: "PROSPECTINGGOAT12"},
		{name: "minimum length", raw: "AB1", want: "AB1"},
		{name: "empty", raw: "", wantErr: true},
		{name: "whitespace only", raw: "   ", wantErr: true},
		{name: "too short", raw: "AB", wantErr: true},
		{name: "too long", raw: "A12345678901234567890123456789012345678901234567890", wantErr: true},
		{name: "inner space", raw: "SAVE 20", wantErr: true},
		{name: "punctuation", raw: "SAVE-20", wantErr: true},
		{name: "unicode", raw: "SÄVE20", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	first, err := Normalize("  Welcome50  ")
	require.NoError(t, err)

	second, err := Normalize(string(first))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCouponID(t *testing.T) {
	code, err := Normalize("ProspectingGoat12")
	require.NoError(t, err)
	assert.Equal(t, "discount_prospectinggoat12", code.CouponID())
}
