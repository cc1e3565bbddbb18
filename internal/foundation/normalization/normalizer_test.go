package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mrefbuilder/internal/metadata"
)

type memberOrder string

var orderNormalizer = NewEnumNormalizer("member order", map[string]memberOrder{
	"declaration": "declaration",
	"Name":        "name",
}, "declaration")

var visibilityNormalizer = NewEnumNormalizer("visibility", map[string]metadata.Visibility{
	"public":             metadata.Public,
	"protected":          metadata.Family,
	"family":             metadata.Family,
	"internal":           metadata.VisibilityAssembly,
	"protected internal": metadata.FamilyOrAssembly,
	"family or assembly": metadata.FamilyOrAssembly,
	"private":            metadata.Private,
}, metadata.Public)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want memberOrder
	}{
		{"declaration", "declaration"},
		{"  NAME ", "name"},
		{"name", "name"},
		{"alphabetical", "declaration"},
		{"", "declaration"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, orderNormalizer.Normalize(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeWithValidation_Visibility(t *testing.T) {
	tests := []struct {
		in   string
		want metadata.Visibility
	}{
		{"Public", metadata.Public},
		{"family", metadata.Family},
		{"internal", metadata.VisibilityAssembly},
		{"Protected  Internal", metadata.FamilyOrAssembly},
		{"family or assembly", metadata.FamilyOrAssembly},
		{" private ", metadata.Private},
	}
	for _, tt := range tests {
		got, err := visibilityNormalizer.NormalizeWithValidation(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestNormalizeWithValidation_ListsOptions(t *testing.T) {
	_, err := visibilityNormalizer.NormalizeWithValidation("friend")
	require.Error(t, err)
	assert.Equal(t,
		`invalid visibility "friend", valid options: family, family or assembly, internal, private, protected, protected internal, public`,
		err.Error())

	_, err = orderNormalizer.NormalizeWithValidation("random")
	assert.ErrorContains(t, err, "declaration, name")
}
