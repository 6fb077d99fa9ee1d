// Package deck assembles synthesized slide content into a themed PPTX
// document. Assembly is deterministic: slides appear in the order the
// contents slice provides, regardless of how the upstream stages finished.
package deck

import (
	"io"

	"github.com/germanilia/presentation-maker/internal/service/content"
	"github.com/germanilia/presentation-maker/internal/service/imagegen"
	"github.com/germanilia/presentation-maker/internal/service/theme"
	"github.com/germanilia/presentation-maker/pkg/errors"
)

// Slide is one rendered slide of the deck.
type Slide struct {
	Title   string
	Bullets []string
	Table   *content.Table
	Image   *imagegen.Asset
	Notes   string
	Cover   bool
}

// Deck is the assembled presentation. It is immutable after Assemble and
// owned by the caller until written out.
type Deck struct {
	Topic  string
	Theme  theme.Theme
	Slides []Slide
	Logo   []byte
}

// Assemble builds the deck: a cover slide for the topic followed by one
// slide per SlideContent, in the given order. images is aligned by index
// with contents; a nil entry means the slide renders text-only, and a
// generated image that is not an embeddable raster is dropped the same way.
// cover optionally illustrates the cover slide. A logo that does not decode
// as a known raster format is an assembly error; a missing (nil) logo is
// not.
func Assemble(topic string, contents []content.SlideContent, images []*imagegen.Asset, cover *imagegen.Asset, th theme.Theme, logo []byte) (*Deck, error) {
	th = theme.Resolve(th)

	if len(logo) > 0 && !EmbeddableImage(logo) {
		return nil, errors.New(errors.ErrCodeAssembly, "logo bytes are not a supported image format")
	}

	d := &Deck{
		Topic:  topic,
		Theme:  th,
		Logo:   logo,
		Slides: make([]Slide, 0, len(contents)+1),
	}

	if cover != nil && !EmbeddableImage(cover.Bytes) {
		cover = nil
	}
	d.Slides = append(d.Slides, Slide{Title: topic, Image: cover, Cover: true})

	for i, sc := range contents {
		var img *imagegen.Asset
		if i < len(images) && images[i] != nil && EmbeddableImage(images[i].Bytes) {
			img = images[i]
		}

		d.Slides = append(d.Slides, Slide{
			Title:   sc.Title,
			Bullets: sc.Bullets,
			Table:   padTable(sc.Table),
			Image:   img,
			Notes:   sc.Notes,
		})
	}

	return d, nil
}

// WritePPTX renders the deck into w as an OOXML presentation package.
func (d *Deck) WritePPTX(w io.Writer) error {
	return writePackage(d, w)
}

// padTable normalizes a ragged table: every row is padded with empty cells
// up to the widest row or the header, never truncated.
func padTable(t *content.Table) *content.Table {
	if t == nil {
		return nil
	}

	width := len(t.Headers)
	for _, row := range t.Rows {
		if len(row) > width {
			width = len(row)
		}
	}

	headers := padRow(t.Headers, width)
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = padRow(row, width)
	}

	return &content.Table{Headers: headers, Rows: rows}
}

func padRow(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

// EmbeddableImage reports whether data is a raster format the PPTX writer
// can embed.
func EmbeddableImage(data []byte) bool {
	switch imagegen.DetectMimeType(data) {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
