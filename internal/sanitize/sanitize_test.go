package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescription(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain text passes through", "Gunmen attacked the village", "Gunmen attacked the village"},
		{"surrounding whitespace trimmed", "  attack on the market  ", "attack on the market"},
		{"internal whitespace collapsed", "armed\tmen\n\nattacked   the town", "armed men attacked the town"},
		{"tags stripped, text kept", "<b>Armed men</b> attacked the <i>village</i>", "Armed men attacked the village"},
		{"script body dropped", "Attack reported<script>alert('x')</script> near the road", "Attack reported near the road"},
		{"style body dropped", "<style>body{color:red}</style>Explosion at the market", "Explosion at the market"},
		{"nested markup flattened", "<div><p>Shooting near the <a href='#'>school</a></p></div>", "Shooting near the school"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Description(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescriptionRejectsNullBytes(t *testing.T) {
	_, err := Description("attack\x00 on village")
	assert.ErrorIs(t, err, ErrNullByte)
}

func TestDescriptionRejectsOversizedInput(t *testing.T) {
	_, err := Description(strings.Repeat("a", MaxDescriptionLength+1))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestDescriptionAcceptsMaximumLength(t *testing.T) {
	got, err := Description(strings.Repeat("a", MaxDescriptionLength))
	require.NoError(t, err)
	assert.Len(t, got, MaxDescriptionLength)
}

func TestDescriptionRejectsEmptyResult(t *testing.T) {
	tests := []string{
		"",
		"   \n\t ",
		"<script>alert('x')</script>",
		"<div></div>",
	}

	for _, raw := range tests {
		_, err := Description(raw)
		assert.ErrorIs(t, err, ErrEmptyResult, "raw=%q", raw)
	}
}

func TestStripMarkupWithoutTags(t *testing.T) {
	assert.Equal(t, "no markup here", StripMarkup("  no markup here "))
}

func TestValidateNoNullBytes(t *testing.T) {
	assert.NoError(t, ValidateNoNullBytes("ok", "also ok", ""))
	assert.ErrorIs(t, ValidateNoNullBytes("ok", "bad\x00"), ErrNullByte)
}
