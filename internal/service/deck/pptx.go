package deck

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/germanilia/presentation-maker/internal/service/content"
	"github.com/germanilia/presentation-maker/internal/service/imagegen"
	"github.com/germanilia/presentation-maker/internal/service/theme"
	"github.com/germanilia/presentation-maker/pkg/errors"
)

// All geometry below is in EMUs (914400 per inch). The canvas is 16:9,
// 13.333 by 7.5 inches, matching the original deck layout.
const (
	emuPerInch = 914400

	slideWidth  = 12192000
	slideHeight = 6858000

	marginEMU     = emuPerInch / 2
	contentTopEMU = emuPerInch * 3 / 2
	footerHeight  = emuPerInch * 2 / 5
)

type mediaPart struct {
	name string
	ext  string
	data []byte
}

// writePackage renders the deck as a PPTX (OOXML) zip package.
func writePackage(d *Deck, w io.Writer) error {
	zw := zip.NewWriter(w)

	var media []mediaPart
	addMedia := func(data []byte, mime string) string {
		name := fmt.Sprintf("image%d", len(media)+1)
		ext := extForMime(mime)
		media = append(media, mediaPart{name: name, ext: ext, data: data})
		return name + ext
	}

	logoFile := ""
	if len(d.Logo) > 0 {
		logoFile = addMedia(d.Logo, imagegen.DetectMimeType(d.Logo))
	}

	slideImages := make([]string, len(d.Slides))
	for i, s := range d.Slides {
		if s.Image != nil {
			slideImages[i] = addMedia(s.Image.Bytes, s.Image.MimeType)
		}
	}

	notesIndex := make([]int, len(d.Slides)) // 0 = no notes part
	nextNotes := 0
	for i, s := range d.Slides {
		if s.Notes != "" {
			nextNotes++
			notesIndex[i] = nextNotes
		}
	}
	hasNotes := nextNotes > 0

	files := map[string]string{
		"[Content_Types].xml":                      contentTypesXML(len(d.Slides), nextNotes, media),
		"_rels/.rels":                              rootRelsXML,
		"docProps/core.xml":                        corePropsXML(d.Topic),
		"docProps/app.xml":                         appPropsXML(len(d.Slides)),
		"ppt/presentation.xml":                     presentationXML(len(d.Slides), hasNotes),
		"ppt/_rels/presentation.xml.rels":          presentationRelsXML(len(d.Slides), hasNotes),
		"ppt/theme/theme1.xml":                     themeXML,
		"ppt/slideMasters/slideMaster1.xml":        slideMasterXML,
		"ppt/slideMasters/_rels/slideMaster1.xml.rels": slideMasterRelsXML,
		"ppt/slideLayouts/slideLayout1.xml":        slideLayoutXML,
		"ppt/slideLayouts/_rels/slideLayout1.xml.rels": slideLayoutRelsXML,
	}

	if hasNotes {
		files["ppt/notesMasters/notesMaster1.xml"] = notesMasterXML
		files["ppt/notesMasters/_rels/notesMaster1.xml.rels"] = notesMasterRelsXML
	}

	for i, s := range d.Slides {
		n := i + 1
		files[fmt.Sprintf("ppt/slides/slide%d.xml", n)] = slideXML(d, s, slideImages[i], logoFile)
		files[fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n)] = slideRelsXML(slideImages[i], logoFile, notesIndex[i])
		if notesIndex[i] > 0 {
			files[fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", notesIndex[i])] = notesSlideXML(s.Notes)
			files[fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", notesIndex[i])] = notesSlideRelsXML(n)
		}
	}

	for name, body := range files {
		if err := addZipFile(zw, name, []byte(body)); err != nil {
			return err
		}
	}
	for _, m := range media {
		if err := addZipFile(zw, "ppt/media/"+m.name+m.ext, m.data); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeAssembly, "failed to finalize pptx package")
	}
	return nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAssembly, "failed to create pptx part "+name)
	}
	if _, err := f.Write(data); err != nil {
		return errors.Wrap(err, errors.ErrCodeAssembly, "failed to write pptx part "+name)
	}
	return nil
}

// --- package-level parts ---

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

func contentTypesXML(slides, notes int, media []mediaPart) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)

	exts := map[string]string{}
	for _, m := range media {
		exts[strings.TrimPrefix(m.ext, ".")] = mimeForExt(m.ext)
	}
	for ext, mime := range exts {
		fmt.Fprintf(&b, `<Default Extension="%s" ContentType="%s"/>`, ext, mime)
	}

	b.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`)
	b.WriteString(`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`)
	for i := 1; i <= slides; i++ {
		fmt.Fprintf(&b, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i)
	}
	if notes > 0 {
		b.WriteString(`<Override PartName="/ppt/notesMasters/notesMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.notesMaster+xml"/>`)
		for i := 1; i <= notes; i++ {
			fmt.Fprintf(&b, `<Override PartName="/ppt/notesSlides/notesSlide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml"/>`, i)
		}
	}
	b.WriteString(`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>`)
	b.WriteString(`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`)
	b.WriteString(`</Types>`)
	return b.String()
}

const rootRelsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>` +
	`</Relationships>`

func corePropsXML(topic string) string {
	return xmlHeader + `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">` +
		`<dc:title>` + esc(topic) + `</dc:title>` +
		`<dc:creator>presentation-maker</dc:creator>` +
		`</cp:coreProperties>`
}

func appPropsXML(slides int) string {
	return xmlHeader + `<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
		`<Application>presentation-maker</Application>` +
		fmt.Sprintf(`<Slides>%d</Slides>`, slides) +
		`</Properties>`
}

func presentationXML(slides int, hasNotes bool) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`)
	b.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	if hasNotes {
		fmt.Fprintf(&b, `<p:notesMasterIdLst><p:notesMasterId r:id="rId%d"/></p:notesMasterIdLst>`, slides+2)
	}
	b.WriteString(`<p:sldIdLst>`)
	for i := 1; i <= slides; i++ {
		fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, 255+i, i+1)
	}
	b.WriteString(`</p:sldIdLst>`)
	fmt.Fprintf(&b, `<p:sldSz cx="%d" cy="%d"/><p:notesSz cx="%d" cy="%d"/>`, slideWidth, slideHeight, slideHeight, slideWidth)
	b.WriteString(`</p:presentation>`)
	return b.String()
}

func presentationRelsXML(slides int, hasNotes bool) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	b.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>`)
	for i := 1; i <= slides; i++ {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, i+1, i)
	}
	if hasNotes {
		fmt.Fprintf(&b, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesMaster" Target="notesMasters/notesMaster1.xml"/>`, slides+2)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

const themeXML = xmlHeader + `<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="Office"><a:themeElements>` +
	`<a:clrScheme name="Office"><a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1><a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>` +
	`<a:dk2><a:srgbClr val="44546A"/></a:dk2><a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>` +
	`<a:accent1><a:srgbClr val="4472C4"/></a:accent1><a:accent2><a:srgbClr val="ED7D31"/></a:accent2>` +
	`<a:accent3><a:srgbClr val="A5A5A5"/></a:accent3><a:accent4><a:srgbClr val="FFC000"/></a:accent4>` +
	`<a:accent5><a:srgbClr val="5B9BD5"/></a:accent5><a:accent6><a:srgbClr val="70AD47"/></a:accent6>` +
	`<a:hlink><a:srgbClr val="0563C1"/></a:hlink><a:folHlink><a:srgbClr val="954F72"/></a:folHlink></a:clrScheme>` +
	`<a:fontScheme name="Office"><a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>` +
	`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont></a:fontScheme>` +
	`<a:fmtScheme name="Office"><a:fillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:fillStyleLst>` +
	`<a:lnStyleLst><a:ln><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln></a:lnStyleLst>` +
	`<a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst>` +
	`<a:bgFillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:bgFillStyleLst></a:fmtScheme>` +
	`</a:themeElements></a:theme>`

const clrMap = `<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>`

const slideMasterXML = xmlHeader + `<p:sldMaster xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
	`<p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/></p:spTree></p:cSld>` +
	clrMap +
	`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>` +
	`</p:sldMaster>`

const slideMasterRelsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="../theme/theme1.xml"/>` +
	`</Relationships>`

const slideLayoutXML = xmlHeader + `<p:sldLayout xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" type="blank">` +
	`<p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/></p:spTree></p:cSld>` +
	`</p:sldLayout>`

const slideLayoutRelsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="../slideMasters/slideMaster1.xml"/>` +
	`</Relationships>`

const notesMasterXML = xmlHeader + `<p:notesMaster xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">` +
	`<p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/></p:spTree></p:cSld>` +
	clrMap +
	`</p:notesMaster>`

const notesMasterRelsXML = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="../theme/theme1.xml"/>` +
	`</Relationships>`

// --- slide parts ---

func slideRelsXML(imageFile, logoFile string, notesIdx int) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	b.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`)
	if imageFile != "" {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/%s"/>`, relIDImage, imageFile)
	}
	if logoFile != "" {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/%s"/>`, relIDLogo, logoFile)
	}
	if notesIdx > 0 {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesSlide" Target="../notesSlides/notesSlide%d.xml"/>`, relIDNotes, notesIdx)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

const (
	relIDImage = "rId2"
	relIDLogo  = "rId3"
	relIDNotes = "rId4"
)

func notesSlideRelsXML(slideNum int) string {
	return xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/notesMaster" Target="../notesMasters/notesMaster1.xml"/>` +
		fmt.Sprintf(`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="../slides/slide%d.xml"/>`, slideNum) +
		`</Relationships>`
}

func notesSlideXML(notes string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:notes xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree>`)
	b.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`)
	b.WriteString(`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Notes"/><p:cNvSpPr txBox="1"/><p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr><p:spPr/>`)
	b.WriteString(`<p:txBody><a:bodyPr wrap="square"/><a:lstStyle/>`)
	for _, line := range strings.Split(notes, "\n") {
		fmt.Fprintf(&b, `<a:p><a:r><a:t>%s</a:t></a:r></a:p>`, esc(line))
	}
	b.WriteString(`</p:txBody></p:sp></p:spTree></p:cSld></p:notes>`)
	return b.String()
}

// slideXML renders one slide's shape tree: cover slides get a centered
// topic title, content slides get title, bullets and/or table, optional
// image on the right, the footer bar, and the logo.
func slideXML(d *Deck, s Slide, imageFile, logoFile string) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"><p:cSld><p:spTree>`)
	b.WriteString(`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`)

	id := newIDGen()
	th := d.Theme

	if s.Cover {
		writeCover(&b, id, s, th, imageFile, logoFile)
	} else {
		writeContent(&b, id, s, th, imageFile)
		writeFooter(&b, id, th, logoFile)
	}

	b.WriteString(`</p:spTree></p:cSld><p:clrMapOvr><a:overrideClrMapping bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/></p:clrMapOvr></p:sld>`)
	return b.String()
}

func writeCover(b *strings.Builder, id *idGen, s Slide, th theme.Theme, imageFile, logoFile string) {
	// Topic title, centered in the upper middle of the canvas.
	titleBox := textBox{
		id:     id.next(),
		name:   "Title",
		x:      inches(1.0),
		y:      inches(1.8),
		w:      slideWidth - inches(2.0),
		h:      inches(2.0),
		center: true,
	}
	titleBox.paragraphs = []paragraph{{runs: []run{{
		text:  s.Title,
		font:  th.Fonts.Title,
		color: *th.Colors.Title,
		bold:  true,
	}}}}
	titleBox.write(b)

	if imageFile != "" {
		// Cover illustration, centered beneath the title.
		imgW := inches(4.0)
		writePicture(b, id.next(), "CoverImage", relIDImage,
			(slideWidth-imgW)/2, inches(4.2), imgW, inches(2.25))
	}

	if logoFile != "" {
		writePicture(b, id.next(), "Logo", relIDLogo,
			slideWidth-inches(2.0), slideHeight-inches(1.5), inches(1.5), inches(1.0))
	}
}

func writeContent(b *strings.Builder, id *idGen, s Slide, th theme.Theme, imageFile string) {
	contentWidth := int64(slideWidth * 6 / 10)

	titleBox := textBox{
		id:   id.next(),
		name: "Title",
		x:    marginEMU,
		y:    inches(0.3),
		w:    contentWidth,
		h:    inches(1.2),
	}
	titleBox.paragraphs = []paragraph{{runs: []run{{
		text:  s.Title,
		font:  th.Fonts.Title,
		color: *th.Colors.Title,
		bold:  true,
	}}}}
	titleBox.write(b)

	bodyTop := int64(contentTopEMU)
	if len(s.Bullets) > 0 {
		bullets := textBox{
			id:      id.next(),
			name:    "Bullets",
			x:       marginEMU,
			y:       bodyTop,
			w:       contentWidth - marginEMU,
			h:       slideHeight - bodyTop - footerHeight,
			bullets: true,
		}
		for _, text := range s.Bullets {
			bullets.paragraphs = append(bullets.paragraphs, bulletParagraph(text, th))
		}
		bullets.write(b)
		bodyTop += inches(0.35)*int64(len(s.Bullets)) + inches(0.3)
	}

	if s.Table != nil {
		maxH := slideHeight - bodyTop - footerHeight
		if maxH > 0 {
			writeTable(b, id.next(), s.Table, th, marginEMU, bodyTop, contentWidth-marginEMU, maxH)
		}
	}

	if imageFile != "" {
		imgX := contentWidth + inches(0.2)
		writePicture(b, id.next(), "Illustration", relIDImage,
			imgX, contentTopEMU, slideWidth-imgX-inches(0.2), slideHeight*7/10-contentTopEMU/2)
	}
}

// bulletParagraph splits "Header - content" bullets so the header renders
// bold, as the source content prompt requests.
func bulletParagraph(text string, th theme.Theme) paragraph {
	p := paragraph{bulletColor: th.Colors.Bullet}
	if header, rest, found := strings.Cut(text, " - "); found && header != "" {
		p.runs = []run{
			{text: header, font: th.Fonts.Text, color: *th.Colors.Text, bold: true},
			{text: " - " + rest, font: th.Fonts.Text, color: *th.Colors.Text},
		}
	} else {
		p.runs = []run{{text: text, font: th.Fonts.Text, color: *th.Colors.Text}}
	}
	return p
}

func writeFooter(b *strings.Builder, id *idGen, th theme.Theme, logoFile string) {
	footerTop := int64(slideHeight - footerHeight)

	// Footer background bar.
	fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="FooterBar"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>`, id.next())
	fmt.Fprintf(b, `<p:spPr><a:xfrm><a:off x="0" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, footerTop, slideWidth, footerHeight)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:solidFill><a:srgbClr val="F5F5F5"/></a:solidFill><a:ln><a:noFill/></a:ln></p:spPr>`)
	b.WriteString(`<p:txBody><a:bodyPr/><a:lstStyle/><a:p/></p:txBody></p:sp>`)

	if th.Footer != "" {
		footerBox := textBox{
			id:   id.next(),
			name: "FooterText",
			x:    marginEMU,
			y:    footerTop,
			w:    slideWidth - marginEMU*2 - inches(1.5),
			h:    footerHeight,
		}
		footerBox.paragraphs = []paragraph{{runs: []run{{
			text:  th.Footer,
			font:  th.Fonts.Footer,
			color: *th.Colors.Footer,
		}}}}
		footerBox.write(b)
	}

	if logoFile != "" {
		logoSize := inches(0.3)
		writePicture(b, id.next(), "FooterLogo", relIDLogo,
			slideWidth-logoSize-marginEMU, footerTop+inches(0.05), logoSize, logoSize)
	}
}

// --- drawing primitives ---

type idGen struct{ n int }

func newIDGen() *idGen { return &idGen{n: 1} }

func (g *idGen) next() int {
	g.n++
	return g.n
}

type run struct {
	text  string
	font  theme.Font
	color theme.Color
	bold  bool
}

type paragraph struct {
	runs        []run
	bulletColor *theme.Color
}

type textBox struct {
	id         int
	name       string
	x, y, w, h int64
	center     bool
	bullets    bool
	paragraphs []paragraph
}

func (tb textBox) write(b *strings.Builder) {
	fmt.Fprintf(b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="%s"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`, tb.id, esc(tb.name))
	fmt.Fprintf(b, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:noFill/></p:spPr>`, tb.x, tb.y, tb.w, tb.h)
	b.WriteString(`<p:txBody><a:bodyPr wrap="square"><a:normAutofit/></a:bodyPr><a:lstStyle/>`)

	for _, p := range tb.paragraphs {
		b.WriteString(`<a:p><a:pPr`)
		if tb.center {
			b.WriteString(` algn="ctr"`)
		}
		b.WriteString(`>`)
		if tb.bullets && p.bulletColor != nil {
			fmt.Fprintf(b, `<a:buClr><a:srgbClr val="%s"/></a:buClr><a:buChar char="&#8226;"/>`, hexColor(*p.bulletColor))
		} else if !tb.bullets {
			b.WriteString(`<a:buNone/>`)
		}
		b.WriteString(`</a:pPr>`)
		for _, r := range p.runs {
			writeRun(b, r)
		}
		b.WriteString(`</a:p>`)
	}

	b.WriteString(`</p:txBody></p:sp>`)
}

func writeRun(b *strings.Builder, r run) {
	bold := ""
	if r.bold {
		bold = ` b="1"`
	}
	fmt.Fprintf(b, `<a:r><a:rPr lang="en-US" sz="%d"%s><a:solidFill><a:srgbClr val="%s"/></a:solidFill><a:latin typeface="%s"/></a:rPr><a:t>%s</a:t></a:r>`,
		r.font.Size*100, bold, hexColor(r.color), esc(r.font.Name), esc(r.text))
}

func writePicture(b *strings.Builder, id int, name, relID string, x, y, w, h int64) {
	fmt.Fprintf(b, `<p:pic><p:nvPicPr><p:cNvPr id="%d" name="%s"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr>`, id, esc(name))
	fmt.Fprintf(b, `<p:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`, relID)
	fmt.Fprintf(b, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`, x, y, w, h)
}

func writeTable(b *strings.Builder, id int, t *content.Table, th theme.Theme, x, y, w, maxH int64) {
	cols := len(t.Headers)
	if cols == 0 {
		return
	}
	rowH := inches(0.4)
	h := rowH * int64(len(t.Rows)+1)
	if h > maxH {
		h = maxH
	}

	fmt.Fprintf(b, `<p:graphicFrame><p:nvGraphicFramePr><p:cNvPr id="%d" name="Table"/><p:cNvGraphicFramePr/><p:nvPr/></p:nvGraphicFramePr>`, id)
	fmt.Fprintf(b, `<p:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></p:xfrm>`, x, y, w, h)
	b.WriteString(`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table"><a:tbl><a:tblPr firstRow="1"/><a:tblGrid>`)

	colW := w / int64(cols)
	for i := 0; i < cols; i++ {
		fmt.Fprintf(b, `<a:gridCol w="%d"/>`, colW)
	}
	b.WriteString(`</a:tblGrid>`)

	writeTableRow(b, t.Headers, th.Fonts.Table, *th.Colors.Table.Header, true, rowH)
	for _, row := range t.Rows {
		writeTableRow(b, row, th.Fonts.Table, *th.Colors.Table.Text, false, rowH)
	}

	b.WriteString(`</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`)
}

func writeTableRow(b *strings.Builder, cells []string, font theme.Font, color theme.Color, header bool, rowH int64) {
	fmt.Fprintf(b, `<a:tr h="%d">`, rowH)
	for _, cell := range cells {
		b.WriteString(`<a:tc><a:txBody><a:bodyPr/><a:lstStyle/><a:p>`)
		writeRun(b, run{text: cell, font: font, color: color, bold: header})
		b.WriteString(`</a:p></a:txBody><a:tcPr/></a:tc>`)
	}
	b.WriteString(`</a:tr>`)
}

// --- helpers ---

func inches(v float64) int64 {
	return int64(v * emuPerInch)
}

func hexColor(c theme.Color) string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

func esc(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

func extForMime(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func mimeForExt(ext string) string {
	switch ext {
	case ".jpg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
