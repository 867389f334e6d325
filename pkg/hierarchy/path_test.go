package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const plantX = "ITW>Automotive OEM>Smart Components>Smart Components NA>PlantX"

func TestParse(t *testing.T) {
	t.Run("full path", func(t *testing.T) {
		p := Parse(plantX)
		assert.Equal(t, 5, p.Len())
		assert.Equal(t, "ITW", p.Enterprise())
		assert.Equal(t, "PlantX", p.Plant())
		assert.Equal(t, "Smart Components", p.Segment(LevelPlatform))
		assert.Equal(t, plantX, p.String())
		assert.Equal(t, plantX+">", p.Prefix())
	})

	t.Run("trailing delimiter dropped", func(t *testing.T) {
		p := Parse("ITW>Automotive OEM>")
		assert.Equal(t, []string{"ITW", "Automotive OEM"}, p.Segments())
		assert.True(t, p.Equal(Parse("ITW>Automotive OEM")))
	})

	t.Run("empty", func(t *testing.T) {
		assert.True(t, Parse("").IsZero())
		assert.True(t, Parse(">").IsZero())
		assert.Equal(t, "", Parse("").Prefix())
	})

	t.Run("casing is not normalized", func(t *testing.T) {
		assert.False(t, Parse("itw>Automotive OEM").Equal(Parse("ITW>Automotive OEM")))
	})
}

func TestPath_Covers(t *testing.T) {
	tests := []struct {
		name     string
		scope    string
		target   string
		expected bool
	}{
		{"segment covers plant", "ITW>Automotive OEM>", plantX, true},
		{"equal paths", plantX, plantX, true},
		{"sibling segment", "ITW>Automotive OEM>", "ITW>Other Segment>", false},
		{"name prefix is not a path prefix", "ITW>Seg>Plat>Division1", "ITW>Seg>Plat>Division10>Plant", false},
		{"descendant does not cover ancestor", plantX, "ITW>Automotive OEM", false},
		{"empty covers everything", "", plantX, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Parse(tt.scope).Covers(Parse(tt.target)))
		})
	}
}

func TestPath_Truncate(t *testing.T) {
	p := Parse(plantX)
	assert.Equal(t, "ITW>Automotive OEM", p.Truncate(LevelSegment).String())
	assert.True(t, p.Truncate(LevelPlant).Equal(p))
	assert.True(t, p.Truncate(0).IsZero())
	assert.Equal(t, "ITW>Automotive OEM>New", p.Truncate(LevelSegment).Child("New").String())
}

func TestPath_TextRoundTrip(t *testing.T) {
	var p Path
	assert.NoError(t, p.UnmarshalText([]byte("ITW>Automotive OEM>")))
	text, err := p.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "ITW>Automotive OEM", string(text))
}

func TestScopeForLevel(t *testing.T) {
	assert.Equal(t, ScopeEnterprise, ScopeForLevel(1))
	assert.Equal(t, ScopeSegment, ScopeForLevel(2))
	assert.Equal(t, ScopePlatform, ScopeForLevel(3))
	assert.Equal(t, ScopeDivision, ScopeForLevel(4))
	assert.Equal(t, ScopePlant, ScopeForLevel(5))
	assert.Equal(t, Scope(""), ScopeForLevel(0))
	assert.Equal(t, Scope(""), ScopeForLevel(6))

	for l := LevelEnterprise; l <= LevelPlant; l++ {
		assert.Equal(t, l, ScopeForLevel(l).Level())
	}
	assert.True(t, ScopeDivision.IsPrefixScope())
	assert.False(t, ScopePlant.IsPrefixScope())
	assert.False(t, Scope("REGION").Valid())
}

func TestPath_Encodings(t *testing.T) {
	for _, raw := range []string{"ITW>Automotive OEM", "ITW>Automotive OEM>", "ITW>>", ""} {
		p := Parse(raw)
		encodings := p.Encodings()
		assert.Contains(t, encodings, raw)
		for _, e := range encodings {
			assert.True(t, Parse(e).Equal(p), "encoding %q of %q", e, raw)
		}
	}
	assert.Equal(t, []string{"ITW>>"}, Parse("ITW>>").Encodings())
}
