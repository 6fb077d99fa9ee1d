// Package theme resolves a partially specified deck theme into a fully
// populated one. Resolution is pure: unset fields come from the compiled-in
// default, out-of-range color components are clamped, and resolving twice
// yields the same result as resolving once.
package theme

type Color struct {
	R int `json:"r" yaml:"r"`
	G int `json:"g" yaml:"g"`
	B int `json:"b" yaml:"b"`
}

type Font struct {
	Name string `json:"name" yaml:"name"`
	Size int    `json:"size" yaml:"size"`
}

type TableColors struct {
	Header *Color `json:"header,omitempty" yaml:"header,omitempty"`
	Text   *Color `json:"text,omitempty" yaml:"text,omitempty"`
}

type Colors struct {
	Title  *Color      `json:"title,omitempty" yaml:"title,omitempty"`
	Text   *Color      `json:"text,omitempty" yaml:"text,omitempty"`
	Bullet *Color      `json:"bullet,omitempty" yaml:"bullet,omitempty"`
	Table  TableColors `json:"table" yaml:"table"`
	Footer *Color      `json:"footer,omitempty" yaml:"footer,omitempty"`
}

type Fonts struct {
	Title  Font `json:"title" yaml:"title"`
	Text   Font `json:"text" yaml:"text"`
	Table  Font `json:"table" yaml:"table"`
	Footer Font `json:"footer" yaml:"footer"`
}

// Theme carries deck-wide styling. Color pointers are nil when the brief
// leaves them unset; after Resolve every pointer is non-nil and every font
// has a name and a positive size.
type Theme struct {
	Colors Colors `json:"colors" yaml:"colors"`
	Fonts  Fonts  `json:"fonts" yaml:"fonts"`
	Footer string `json:"footer" yaml:"footer"`
}

// Default returns the built-in fallback theme.
func Default() Theme {
	return Theme{
		Colors: Colors{
			Title:  &Color{R: 31, G: 56, B: 100},
			Text:   &Color{R: 38, G: 38, B: 38},
			Bullet: &Color{R: 68, G: 114, B: 196},
			Table: TableColors{
				Header: &Color{R: 31, G: 56, B: 100},
				Text:   &Color{R: 38, G: 38, B: 38},
			},
			Footer: &Color{R: 128, G: 128, B: 128},
		},
		Fonts: Fonts{
			Title:  Font{Name: "Calibri", Size: 32},
			Text:   Font{Name: "Calibri", Size: 16},
			Table:  Font{Name: "Calibri", Size: 14},
			Footer: Font{Name: "Calibri", Size: 10},
		},
	}
}

// Resolve fills every unset field of t from the default theme and clamps
// all color components into [0, 255].
func Resolve(t Theme) Theme {
	def := Default()

	t.Colors.Title = resolveColor(t.Colors.Title, def.Colors.Title)
	t.Colors.Text = resolveColor(t.Colors.Text, def.Colors.Text)
	t.Colors.Bullet = resolveColor(t.Colors.Bullet, def.Colors.Bullet)
	t.Colors.Table.Header = resolveColor(t.Colors.Table.Header, def.Colors.Table.Header)
	t.Colors.Table.Text = resolveColor(t.Colors.Table.Text, def.Colors.Table.Text)
	t.Colors.Footer = resolveColor(t.Colors.Footer, def.Colors.Footer)

	t.Fonts.Title = resolveFont(t.Fonts.Title, def.Fonts.Title)
	t.Fonts.Text = resolveFont(t.Fonts.Text, def.Fonts.Text)
	t.Fonts.Table = resolveFont(t.Fonts.Table, def.Fonts.Table)
	t.Fonts.Footer = resolveFont(t.Fonts.Footer, def.Fonts.Footer)

	return t
}

func resolveColor(c, def *Color) *Color {
	if c == nil {
		cp := *def
		return &cp
	}
	return &Color{
		R: clamp(c.R),
		G: clamp(c.G),
		B: clamp(c.B),
	}
}

func resolveFont(f, def Font) Font {
	if f.Name == "" {
		f.Name = def.Name
	}
	if f.Size <= 0 {
		f.Size = def.Size
	}
	return f
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
