package deck

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanilia/presentation-maker/internal/service/content"
	"github.com/germanilia/presentation-maker/internal/service/imagegen"
	"github.com/germanilia/presentation-maker/internal/service/theme"
	"github.com/germanilia/presentation-maker/pkg/errors"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}

func TestAssembleCoverPlusOneSlidePerContent(t *testing.T) {
	contents := []content.SlideContent{
		{SubTopic: "a", Title: "Alpha", Bullets: []string{"one"}},
		{SubTopic: "b", Title: "Beta", Bullets: []string{"two"}},
		{SubTopic: "c", Title: "Gamma", Bullets: []string{"three"}},
	}

	d, err := Assemble("My Topic", contents, make([]*imagegen.Asset, 3), nil, theme.Theme{}, nil)
	require.NoError(t, err)

	require.Len(t, d.Slides, 4)
	assert.True(t, d.Slides[0].Cover)
	assert.Equal(t, "My Topic", d.Slides[0].Title)
	assert.Equal(t, "Alpha", d.Slides[1].Title)
	assert.Equal(t, "Beta", d.Slides[2].Title)
	assert.Equal(t, "Gamma", d.Slides[3].Title)
}

func TestAssembleAlignsImagesByIndex(t *testing.T) {
	contents := []content.SlideContent{
		{SubTopic: "a", Title: "A", Bullets: []string{"x"}},
		{SubTopic: "b", Title: "B", Bullets: []string{"y"}},
	}
	images := []*imagegen.Asset{
		nil,
		{SubTopic: "b", Bytes: pngBytes, MimeType: "image/png"},
	}

	d, err := Assemble("t", contents, images, nil, theme.Theme{}, nil)
	require.NoError(t, err)

	assert.Nil(t, d.Slides[1].Image)
	require.NotNil(t, d.Slides[2].Image)
	assert.Equal(t, "b", d.Slides[2].Image.SubTopic)
}

func TestAssembleRejectsCorruptLogo(t *testing.T) {
	_, err := Assemble("t", nil, nil, nil, theme.Theme{}, []byte("not an image"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAssembly, errors.CodeOf(err))
}

func TestAssembleDropsUnsupportedImage(t *testing.T) {
	contents := []content.SlideContent{{SubTopic: "a", Title: "A", Bullets: []string{"x"}}}
	images := []*imagegen.Asset{{SubTopic: "a", Bytes: []byte("garbage?"), MimeType: "image/png"}}

	d, err := Assemble("t", contents, images, nil, theme.Theme{}, nil)
	require.NoError(t, err, "a bad slide image degrades, only logo corruption aborts")
	assert.Nil(t, d.Slides[1].Image)
}

func TestAssembleAcceptsWebpImage(t *testing.T) {
	webp := []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0x00, 0x00, 0x00, 0x57, 0x45, 0x42, 0x50}
	contents := []content.SlideContent{{SubTopic: "a", Title: "A", Bullets: []string{"x"}}}
	images := []*imagegen.Asset{{SubTopic: "a", Bytes: webp, MimeType: "image/webp"}}

	d, err := Assemble("t", contents, images, nil, theme.Theme{}, nil)
	require.NoError(t, err)
	require.NotNil(t, d.Slides[1].Image)

	var buf bytes.Buffer
	require.NoError(t, d.WritePPTX(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	found := false
	for _, f := range zr.File {
		if f.Name == "ppt/media/image1.webp" {
			found = true
		}
	}
	assert.True(t, found, "webp asset must land in the media folder")
	assert.Contains(t, readPart(t, zr, "[Content_Types].xml"), "image/webp")
}

func TestAssembleCoverImage(t *testing.T) {
	d, err := Assemble("t", nil, nil, &imagegen.Asset{SubTopic: "t", Bytes: pngBytes, MimeType: "image/png"}, theme.Theme{}, nil)
	require.NoError(t, err)
	require.NotNil(t, d.Slides[0].Image)

	var buf bytes.Buffer
	require.NoError(t, d.WritePPTX(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Contains(t, readPart(t, zr, "ppt/slides/slide1.xml"), "CoverImage")
}

func TestAssembleDropsUnsupportedCoverImage(t *testing.T) {
	d, err := Assemble("t", nil, nil, &imagegen.Asset{SubTopic: "t", Bytes: []byte("garbage?")}, theme.Theme{}, nil)
	require.NoError(t, err)
	assert.Nil(t, d.Slides[0].Image)
}

func TestAssembleMissingLogoIsFine(t *testing.T) {
	d, err := Assemble("t", nil, nil, nil, theme.Theme{}, nil)
	require.NoError(t, err)
	assert.Empty(t, d.Logo)
	require.Len(t, d.Slides, 1)
}

func TestPadTableNormalizesRaggedRows(t *testing.T) {
	in := &content.Table{
		Headers: []string{"h1", "h2"},
		Rows: [][]string{
			{"a"},
			{"b", "c", "d"},
		},
	}

	out := padTable(in)

	require.Len(t, out.Headers, 3)
	for _, row := range out.Rows {
		assert.Len(t, row, 3)
	}
	assert.Equal(t, []string{"a", "", ""}, out.Rows[0])
	assert.Equal(t, []string{"b", "c", "d"}, out.Rows[1])
}

func TestWritePPTXPackageParts(t *testing.T) {
	contents := []content.SlideContent{
		{SubTopic: "a", Title: "Alpha", Bullets: []string{"Point - detail"}, Notes: "Sources:\n- x: http://x"},
		{SubTopic: "b", Title: "Beta", Table: &content.Table{Headers: []string{"h"}, Rows: [][]string{{"v"}}}},
	}
	images := []*imagegen.Asset{
		{SubTopic: "a", Bytes: pngBytes, MimeType: "image/png"},
		nil,
	}

	d, err := Assemble("Topic", contents, images, nil, theme.Theme{}, pngBytes)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, d.WritePPTX(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}

	for _, want := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"ppt/presentation.xml",
		"ppt/slides/slide1.xml",
		"ppt/slides/slide2.xml",
		"ppt/slides/slide3.xml",
		"ppt/slideMasters/slideMaster1.xml",
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/theme/theme1.xml",
		"ppt/notesSlides/notesSlide1.xml",
		"ppt/media/image1.png",
		"ppt/media/image2.png",
	} {
		assert.True(t, names[want], "missing part %s", want)
	}

	slide2 := readPart(t, zr, "ppt/slides/slide2.xml")
	assert.Contains(t, slide2, "Alpha")
	assert.Contains(t, slide2, "Point")

	slide3 := readPart(t, zr, "ppt/slides/slide3.xml")
	assert.Contains(t, slide3, "a:tbl")
}

func TestWritePPTXEscapesXMLCharacters(t *testing.T) {
	contents := []content.SlideContent{
		{SubTopic: "a", Title: "Cats & <Dogs>", Bullets: []string{`say "hi"`}},
	}

	d, err := Assemble("A & B", contents, make([]*imagegen.Asset, 1), nil, theme.Theme{}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, d.WritePPTX(&buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	slide2 := readPart(t, zr, "ppt/slides/slide2.xml")
	assert.Contains(t, slide2, "Cats &amp; &lt;Dogs&gt;")
	assert.NotContains(t, slide2, "<Dogs>")
}

func readPart(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("part %s not found", name)
	return ""
}
