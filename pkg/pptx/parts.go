package pptx

import (
	"fmt"
	"strconv"
	"time"

	"pptxd/infra/branding"
	"pptxd/pkg/assets"
	"pptxd/pkg/layout"
)

const (
	relsNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"

	relOfficeDocument = relsNS + "officeDocument"
	relExtended       = relsNS + "extended-properties"
	relCore           = "http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties"
	relSlideMaster    = relsNS + "slideMaster"
	relSlideLayout    = relsNS + "slideLayout"
	relSlide          = relsNS + "slide"
	relTheme          = relsNS + "theme"
	relNotesMaster    = relsNS + "notesMaster"
	relNotesSlide     = relsNS + "notesSlide"
	relImage          = relsNS + "image"
	relPresProps      = relsNS + "presProps"
	relViewProps      = relsNS + "viewProps"
	relTableStyles    = relsNS + "tableStyles"

	pml = "application/vnd.openxmlformats-officedocument.presentationml."

	ctRels         = "application/vnd.openxmlformats-package.relationships+xml"
	ctXML          = "application/xml"
	ctPresentation = pml + "presentation.main+xml"
	ctSlide        = pml + "slide+xml"
	ctSlideMaster  = pml + "slideMaster+xml"
	ctSlideLayout  = pml + "slideLayout+xml"
	ctNotesMaster  = pml + "notesMaster+xml"
	ctNotesSlide   = pml + "notesSlide+xml"
	ctPresProps    = pml + "presProps+xml"
	ctViewProps    = pml + "viewProps+xml"
	ctTableStyles  = pml + "tableStyles+xml"
	ctTheme        = "application/vnd.openxmlformats-officedocument.theme+xml"
	ctCore         = "application/vnd.openxmlformats-package.core-properties+xml"
	ctApp          = "application/vnd.openxmlformats-officedocument.extended-properties+xml"

	// Medium Style 2 - Accent 1, built into every PresentationML consumer.
	tableStyleID = "{5C22544A-7EE6-4342-B048-85BDC9FD1C3A}"

	firstSlideID = 256
)

var embeddable = map[assets.Format]bool{
	assets.PNG:  true,
	assets.JPEG: true,
	assets.GIF:  true,
	assets.BMP:  true,
	assets.TIFF: true,
}

type part struct {
	name     string
	template string
	data     any
	raw      []byte
}

type rel struct {
	ID     string
	Type   string
	Target string
}

type contentTypes struct {
	Defaults  []ctDefault
	Overrides []ctOverride
}

type ctDefault struct{ Ext, Type string }
type ctOverride struct{ Part, Type string }

type presentationView struct {
	MasterRID      string
	NotesMasterRID string
	Slides         []slideRef
	Width, Height  int64
}

type slideRef struct {
	ID  int
	RID string
}

type slideView struct {
	Shapes []shapeView
}

type shapeView struct {
	ID      int
	Name    string
	Frame   layout.Rect
	Text    *textView
	Picture *pictureView
	Table   *tableView
}

type textView struct {
	Anchor     layout.Anchor
	Paragraphs []paragraphView
}

type paragraphView struct {
	Text    string
	Level   int
	Size    int // hundredths of a point
	Bold    bool
	Bullet  string
	MarginL int64
	Indent  int64
	Align   layout.Align
}

type pictureView struct {
	RID   string
	Descr string
}

type tableView struct {
	StyleID string
	Columns []int64
	Rows    []rowView
}

type rowView struct {
	Height int64
	Cells  []paragraphView
}

type notesView struct {
	Lines []string
}

type appView struct {
	Application string
	Slides      int
	Notes       int
	Paragraphs  int
	Words       int
}

type coreView struct {
	Title   string
	Creator string
	Created string
}

type media struct {
	part   string
	target string
	asset  assets.Asset
}

// pkgPlan is the ordered list of parts for one build plus the counters that
// keep part names unique.
type pkgPlan struct {
	parts     []part
	overrides []ctOverride
	exts      map[string]string
	media     map[string]media
	nextMedia int
	nextNotes int
	paras     int
	words     int
}

func plan(doc Document, theme branding.Theme) (*pkgPlan, error) {
	p := &pkgPlan{exts: map[string]string{}, media: map[string]media{}}

	var (
		slideParts []part
		refs       []slideRef
		notes      int
	)
	for i, s := range doc.Slides {
		n := i + 1
		parts, err := p.slide(n, s, doc.Assets)
		if err != nil {
			return nil, err
		}
		if len(s.Notes) > 0 {
			notes++
		}
		slideParts = append(slideParts, parts...)
		refs = append(refs, slideRef{ID: firstSlideID + i, RID: "rId" + strconv.Itoa(n+1)})
	}

	n := len(doc.Slides)
	presRels := []rel{{ID: "rId1", Type: relSlideMaster, Target: "slideMasters/slideMaster1.xml"}}
	for i := range n {
		presRels = append(presRels, rel{ID: "rId" + strconv.Itoa(i+2), Type: relSlide, Target: "slides/slide" + strconv.Itoa(i+1) + ".xml"})
	}
	next := func() string { return "rId" + strconv.Itoa(len(presRels)+1) }
	notesMasterRID := next()
	presRels = append(presRels, rel{ID: notesMasterRID, Type: relNotesMaster, Target: "notesMasters/notesMaster1.xml"})
	presRels = append(presRels, rel{ID: next(), Type: relPresProps, Target: "presProps.xml"})
	presRels = append(presRels, rel{ID: next(), Type: relViewProps, Target: "viewProps.xml"})
	presRels = append(presRels, rel{ID: next(), Type: relTheme, Target: "theme/theme1.xml"})
	presRels = append(presRels, rel{ID: next(), Type: relTableStyles, Target: "tableStyles.xml"})

	fixed := []part{
		{name: "_rels/.rels", template: "rels.xml.tmpl", data: []rel{
			{ID: "rId1", Type: relOfficeDocument, Target: "ppt/presentation.xml"},
			{ID: "rId2", Type: relCore, Target: "docProps/core.xml"},
			{ID: "rId3", Type: relExtended, Target: "docProps/app.xml"},
		}},
		p.xmlPart("docProps/app.xml", "app.xml.tmpl", ctApp, appView{Application: "pptxd", Slides: n, Notes: notes, Paragraphs: p.paras, Words: p.words}),
		p.xmlPart("docProps/core.xml", "core.xml.tmpl", ctCore, coreView{Title: doc.Title, Creator: "pptxd", Created: doc.Created.Format(time.RFC3339)}),
		p.xmlPart("ppt/presentation.xml", "presentation.xml.tmpl", ctPresentation, presentationView{
			MasterRID:      "rId1",
			NotesMasterRID: notesMasterRID,
			Slides:         refs,
			Width:          layout.SlideWidth,
			Height:         layout.SlideHeight,
		}),
		{name: "ppt/_rels/presentation.xml.rels", template: "rels.xml.tmpl", data: presRels},
		p.xmlPart("ppt/presProps.xml", "pres_props.xml.tmpl", ctPresProps, nil),
		p.xmlPart("ppt/viewProps.xml", "view_props.xml.tmpl", ctViewProps, nil),
		p.xmlPart("ppt/tableStyles.xml", "table_styles.xml.tmpl", ctTableStyles, tableStyleID),
		p.xmlPart("ppt/slideMasters/slideMaster1.xml", "slide_master.xml.tmpl", ctSlideMaster, struct{ LayoutRID string }{"rId1"}),
		{name: "ppt/slideMasters/_rels/slideMaster1.xml.rels", template: "rels.xml.tmpl", data: []rel{
			{ID: "rId1", Type: relSlideLayout, Target: "../slideLayouts/slideLayout1.xml"},
			{ID: "rId2", Type: relTheme, Target: "../theme/theme1.xml"},
		}},
		p.xmlPart("ppt/slideLayouts/slideLayout1.xml", "slide_layout.xml.tmpl", ctSlideLayout, nil),
		{name: "ppt/slideLayouts/_rels/slideLayout1.xml.rels", template: "rels.xml.tmpl", data: []rel{
			{ID: "rId1", Type: relSlideMaster, Target: "../slideMasters/slideMaster1.xml"},
		}},
		p.xmlPart("ppt/theme/theme1.xml", "theme.xml.tmpl", ctTheme, theme),
		p.xmlPart("ppt/theme/theme2.xml", "theme.xml.tmpl", ctTheme, theme),
		p.xmlPart("ppt/notesMasters/notesMaster1.xml", "notes_master.xml.tmpl", ctNotesMaster, nil),
		{name: "ppt/notesMasters/_rels/notesMaster1.xml.rels", template: "rels.xml.tmpl", data: []rel{
			{ID: "rId1", Type: relTheme, Target: "../theme/theme2.xml"},
		}},
	}

	ct := contentTypes{Defaults: []ctDefault{{Ext: "rels", Type: ctRels}, {Ext: "xml", Type: ctXML}}}
	for _, f := range []assets.Format{assets.PNG, assets.JPEG, assets.GIF, assets.BMP, assets.TIFF} {
		if typ, ok := p.exts[f.Ext()]; ok {
			ct.Defaults = append(ct.Defaults, ctDefault{Ext: f.Ext(), Type: typ})
		}
	}
	ct.Overrides = p.overrides

	all := []part{{name: "[Content_Types].xml", template: "content_types.xml.tmpl", data: ct}}
	all = append(all, fixed...)
	all = append(all, slideParts...)
	p.parts = all
	return p, nil
}

func (p *pkgPlan) xmlPart(name, template, contentType string, data any) part {
	p.overrides = append(p.overrides, ctOverride{Part: "/" + name, Type: contentType})
	return part{name: name, template: template, data: data}
}

func (p *pkgPlan) slide(n int, s Slide, fetched map[string]assets.Asset) ([]part, error) {
	name := "ppt/slides/slide" + strconv.Itoa(n) + ".xml"
	rels := []rel{{ID: "rId1", Type: relSlideLayout, Target: "../slideLayouts/slideLayout1.xml"}}
	var (
		out    []part
		shapes []shapeView
	)
	nextID := func() int { return len(shapes) + 2 }

	if s.Page.Title != nil {
		shapes = append(shapes, p.textShape(nextID(), *s.Page.Title))
	}
	for _, b := range s.Page.Blocks {
		switch b := b.(type) {
		case layout.TextBlock:
			shapes = append(shapes, p.textShape(nextID(), b))
		case layout.ImageFrame:
			m, fresh, err := p.mediaFor(b.URL, fetched)
			if err != nil {
				return nil, &SerializationError{Part: name, Err: err}
			}
			if fresh {
				out = append(out, part{name: m.part, raw: m.asset.Data})
			}
			rid := "rId" + strconv.Itoa(len(rels)+1)
			rels = append(rels, rel{ID: rid, Type: relImage, Target: m.target})
			id := nextID()
			shapes = append(shapes, shapeView{
				ID:      id,
				Name:    "Picture " + strconv.Itoa(id-1),
				Frame:   layout.Fit(b.Frame, m.asset.Width, m.asset.Height),
				Picture: &pictureView{RID: rid, Descr: b.Alt},
			})
		case layout.TableBlock:
			shapes = append(shapes, p.tableShape(nextID(), b))
		default:
			return nil, &SerializationError{Part: name, Err: fmt.Errorf("unhandled block %T", b)}
		}
	}

	if len(s.Notes) > 0 {
		p.nextNotes++
		k := strconv.Itoa(p.nextNotes)
		notesName := "ppt/notesSlides/notesSlide" + k + ".xml"
		rels = append(rels, rel{ID: "rId" + strconv.Itoa(len(rels)+1), Type: relNotesSlide, Target: "../notesSlides/notesSlide" + k + ".xml"})
		out = append(out,
			p.xmlPart(notesName, "notes_slide.xml.tmpl", ctNotesSlide, notesView{Lines: s.Notes}),
			part{name: "ppt/notesSlides/_rels/notesSlide" + k + ".xml.rels", template: "rels.xml.tmpl", data: []rel{
				{ID: "rId1", Type: relNotesMaster, Target: "../notesMasters/notesMaster1.xml"},
				{ID: "rId2", Type: relSlide, Target: "../slides/slide" + strconv.Itoa(n) + ".xml"},
			}},
		)
	}

	head := []part{
		p.xmlPart(name, "slide.xml.tmpl", ctSlide, slideView{Shapes: shapes}),
		{name: "ppt/slides/_rels/slide" + strconv.Itoa(n) + ".xml.rels", template: "rels.xml.tmpl", data: rels},
	}
	return append(head, out...), nil
}

// mediaFor returns the media part for url, registering it on first use.
func (p *pkgPlan) mediaFor(url string, fetched map[string]assets.Asset) (media, bool, error) {
	if m, ok := p.media[url]; ok {
		return m, false, nil
	}
	a, ok := fetched[url]
	if !ok || len(a.Data) == 0 {
		return media{}, false, fmt.Errorf("no image data for %s", url)
	}
	if !embeddable[a.Format] {
		return media{}, false, fmt.Errorf("image %s has format %q, which cannot be embedded", url, a.Format)
	}

	p.nextMedia++
	file := "image" + strconv.Itoa(p.nextMedia) + "." + a.Format.Ext()
	m := media{part: "ppt/media/" + file, target: "../media/" + file, asset: a}
	p.media[url] = m
	p.exts[a.Format.Ext()] = a.Format.ContentType()
	return m, true, nil
}

func (p *pkgPlan) textShape(id int, b layout.TextBlock) shapeView {
	paras := make([]paragraphView, 0, len(b.Paragraphs))
	for _, para := range b.Paragraphs {
		paras = append(paras, paragraphView{
			Text:    para.Text,
			Level:   para.Level,
			Size:    para.Size * 100,
			Bold:    para.Bold,
			Bullet:  para.Bullet,
			MarginL: para.MarginL,
			Indent:  para.Indent,
			Align:   b.Align,
		})
		p.count(para.Text)
	}
	return shapeView{
		ID:    id,
		Name:  string(b.Role) + " " + strconv.Itoa(id-1),
		Frame: b.Frame,
		Text:  &textView{Anchor: b.Anchor, Paragraphs: paras},
	}
}

func (p *pkgPlan) tableShape(id int, b layout.TableBlock) shapeView {
	cell := func(c layout.Cell) paragraphView {
		p.count(c.Text)
		return paragraphView{Text: c.Text, Size: c.Size * 100, Bold: c.Bold}
	}

	t := &tableView{StyleID: tableStyleID, Columns: b.ColWidths}
	header := rowView{Height: b.RowHeights[0]}
	for _, c := range b.Header {
		header.Cells = append(header.Cells, cell(c))
	}
	t.Rows = append(t.Rows, header)
	for i, r := range b.Rows {
		row := rowView{Height: b.RowHeights[i+1]}
		for _, c := range r {
			row.Cells = append(row.Cells, cell(c))
		}
		t.Rows = append(t.Rows, row)
	}
	return shapeView{ID: id, Name: "Table " + strconv.Itoa(id-1), Frame: b.Frame, Table: t}
}

func (p *pkgPlan) count(text string) {
	if text == "" {
		return
	}
	p.paras++
	inWord := false
	for _, r := range text {
		space := r == ' ' || r == '\t' || r == '\n'
		if !space && !inWord {
			p.words++
		}
		inWord = !space
	}
}
