package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEmptyThemeGetsDefaults(t *testing.T) {
	resolved := Resolve(Theme{})
	def := Default()

	require.NotNil(t, resolved.Colors.Title)
	require.NotNil(t, resolved.Colors.Text)
	require.NotNil(t, resolved.Colors.Bullet)
	require.NotNil(t, resolved.Colors.Table.Header)
	require.NotNil(t, resolved.Colors.Table.Text)
	require.NotNil(t, resolved.Colors.Footer)

	assert.Equal(t, *def.Colors.Title, *resolved.Colors.Title)
	assert.Equal(t, def.Fonts.Title, resolved.Fonts.Title)
	assert.Equal(t, def.Fonts.Footer, resolved.Fonts.Footer)
}

func TestResolveKeepsProvidedValues(t *testing.T) {
	in := Theme{
		Colors: Colors{Title: &Color{R: 102, G: 45, B: 145}},
		Fonts:  Fonts{Title: Font{Name: "Arial", Size: 40}},
		Footer: "Quarterly Review",
	}

	resolved := Resolve(in)

	assert.Equal(t, Color{R: 102, G: 45, B: 145}, *resolved.Colors.Title)
	assert.Equal(t, Font{Name: "Arial", Size: 40}, resolved.Fonts.Title)
	assert.Equal(t, "Quarterly Review", resolved.Footer)
	// Unset fields still fall back.
	assert.Equal(t, *Default().Colors.Text, *resolved.Colors.Text)
}

func TestResolveClampsColorComponents(t *testing.T) {
	in := Theme{
		Colors: Colors{
			Title: &Color{R: -10, G: 300, B: 128},
			Table: TableColors{Header: &Color{R: 999, G: -1, B: 0}},
		},
	}

	resolved := Resolve(in)

	assert.Equal(t, Color{R: 0, G: 255, B: 128}, *resolved.Colors.Title)
	assert.Equal(t, Color{R: 255, G: 0, B: 0}, *resolved.Colors.Table.Header)
}

func TestResolveIsIdempotent(t *testing.T) {
	inputs := []Theme{
		{},
		{Colors: Colors{Title: &Color{R: -10, G: 300, B: 12}}},
		{
			Colors: Colors{Bullet: &Color{R: 1, G: 2, B: 3}},
			Fonts:  Fonts{Text: Font{Name: "Georgia", Size: 18}},
			Footer: "footer",
		},
	}

	for _, in := range inputs {
		once := Resolve(in)
		twice := Resolve(once)
		assert.Equal(t, once, twice)
	}
}

func TestResolvePartialFont(t *testing.T) {
	resolved := Resolve(Theme{Fonts: Fonts{Table: Font{Name: "Consolas"}}})
	assert.Equal(t, "Consolas", resolved.Fonts.Table.Name)
	assert.Equal(t, Default().Fonts.Table.Size, resolved.Fonts.Table.Size)
}
