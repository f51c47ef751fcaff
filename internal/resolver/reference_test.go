package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRefsEmptyBody(t *testing.T) {
	assert.Nil(t, ParseRefs(""))
	assert.Nil(t, ParseRefs("no references here"))
}

func TestParseRefsDefaultsToProduction(t *testing.T) {
	refs := ParseRefs("Hello, {{ref:farewell}}!")
	require.Len(t, refs, 1)
	assert.Equal(t, "farewell", refs[0].Name)
	assert.Equal(t, "production", refs[0].Label)
	assert.Zero(t, refs[0].Version)
	assert.NoError(t, refs[0].Err)
}

func TestParseRefsLabelSelector(t *testing.T) {
	refs := ParseRefs("{{ref:greeting@staging}}")
	require.Len(t, refs, 1)
	assert.Equal(t, "greeting", refs[0].Name)
	assert.Equal(t, "staging", refs[0].Label)
}

func TestParseRefsVersionSelector(t *testing.T) {
	refs := ParseRefs("{{ref:greeting@3}}")
	require.Len(t, refs, 1)
	assert.Equal(t, "greeting", refs[0].Name)
	assert.Equal(t, 3, refs[0].Version)
	assert.Empty(t, refs[0].Label)
	assert.Equal(t, "3", refs[0].Selector())
}

func TestParseRefsByteSpans(t *testing.T) {
	body := "a {{ref:x}} b {{ref:y@2}} c"
	refs := ParseRefs(body)
	require.Len(t, refs, 2)
	assert.Equal(t, "{{ref:x}}", body[refs[0].Start:refs[0].End])
	assert.Equal(t, "{{ref:y@2}}", body[refs[1].Start:refs[1].End])
	assert.Less(t, refs[0].Start, refs[1].Start, "references must come out left to right")
}

func TestParseRefsEscaped(t *testing.T) {
	refs := ParseRefs(`literal \{{ref:x}} here`)
	require.Len(t, refs, 1)
	assert.True(t, refs[0].Escaped)
	assert.NoError(t, refs[0].Err)
	assert.Empty(t, refs[0].Name)
}

func TestParseRefsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty target":    "{{ref:}}",
		"empty selector":  "{{ref:x@}}",
		"bad name":        "{{ref:has space}}",
		"bad selector":    "{{ref:x@a b}}",
		"zero version":    "{{ref:x@0}}",
		"negative":        "{{ref:x@-1}}",
		"leading hyphen":  "{{ref:-x}}",
		"double selector": "{{ref:x@a@b}}",
	}
	for desc, body := range cases {
		refs := ParseRefs(body)
		require.Len(t, refs, 1, desc)
		assert.Error(t, refs[0].Err, desc)
	}
}

func TestParseRefsMalformedDoesNotPoisonRest(t *testing.T) {
	refs := ParseRefs("{{ref:}} then {{ref:ok@1}}")
	require.Len(t, refs, 2)
	assert.Error(t, refs[0].Err)
	assert.NoError(t, refs[1].Err)
	assert.Equal(t, "ok", refs[1].Name)
}

func TestPlaceholderDeterministic(t *testing.T) {
	refs := ParseRefs("{{ref:missing@prod}}")
	require.Len(t, refs, 1)
	assert.Equal(t, "[unresolved: missing@prod]", refs[0].Placeholder())

	refs = ParseRefs("{{ref:missing}}")
	require.Len(t, refs, 1)
	assert.Equal(t, "[unresolved: missing@production]", refs[0].Placeholder())
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("greeting"))
	assert.True(t, ValidName("v2.final-draft_1"))
	assert.False(t, ValidName(""))
	assert.False(t, ValidName("-bad"))
	assert.False(t, ValidName("has space"))
}
