// Package layout turns deck slides into absolute geometry on a 16:9 canvas.
//
// All coordinates are EMU. The resolver is pure: it never fails and never
// touches the network, so image frames carry the region an image may occupy
// and Fit places the picture once its pixel size is known.
package layout

import (
	"fmt"

	"pptxd/pkg/deck"
)

const (
	EMUPerInch  = 914400
	EMUPerPoint = 12700

	SlideWidth  int64 = 12192000
	SlideHeight int64 = 6858000

	Margin          int64 = 457200
	TitleBandHeight int64 = 1005840
	BandGap         int64 = 182880

	CoverTitleHeight    int64 = 1371600
	CoverSubtitleHeight int64 = 914400

	// SectionInset pads split section content away from the shared edge.
	SectionInset int64 = 91440

	BulletIndentStep int64 = 342900
)

// Font sizes in points.
const (
	CoverTitleSize    = 44
	CoverSubtitleSize = 24
	TitleBandSize     = 32
	BulletBaseSize    = 28
	BulletSizeStep    = 4
	BulletMinSize     = 12
	TableHeaderSize   = 16
	TableBodySize     = 14
)

var bulletGlyphs = [...]string{"•", "–", "▪"}

// Canvas is the full slide area.
var Canvas = Rect{W: SlideWidth, H: SlideHeight}

// Align is horizontal paragraph alignment.
type Align string

const (
	AlignLeft   Align = "l"
	AlignCenter Align = "ctr"
)

// Anchor is vertical text anchoring inside a text box.
type Anchor string

const (
	AnchorTop    Anchor = "t"
	AnchorMiddle Anchor = "ctr"
)

// Role says what a text block is for; the assembler names shapes after it.
type Role string

const (
	RoleTitle    Role = "Title"
	RoleSubtitle Role = "Subtitle"
	RoleBody     Role = "Content"
)

// Block is one of TextBlock, ImageFrame or TableBlock.
type Block interface {
	Bounds() Rect
	isBlock()
}

// Paragraph is a single run of text with its formatting.
type Paragraph struct {
	Text  string
	Level int
	Size  int // points
	Bold  bool
	// Bullet is the glyph for bullet paragraphs, empty otherwise.
	Bullet  string
	MarginL int64
	Indent  int64
}

// TextBlock is a text box.
type TextBlock struct {
	Frame      Rect
	Role       Role
	Align      Align
	Anchor     Anchor
	Paragraphs []Paragraph
}

// ImageFrame is the region available to an image. The picture itself is
// Fit(Frame, w, h) once the asset dimensions are known.
type ImageFrame struct {
	Frame Rect
	URL   string
	Alt   string
}

// Cell is one table cell.
type Cell struct {
	Text string
	Size int
	Bold bool
}

// TableBlock is a table graphic frame. Every row, the header included, has
// exactly len(ColWidths) cells.
type TableBlock struct {
	Frame      Rect
	ColWidths  []int64
	RowHeights []int64
	Header     []Cell
	Rows       [][]Cell
}

func (b TextBlock) Bounds() Rect  { return b.Frame }
func (b ImageFrame) Bounds() Rect { return b.Frame }
func (b TableBlock) Bounds() Rect { return b.Frame }
func (TextBlock) isBlock()        {}
func (ImageFrame) isBlock()       {}
func (TableBlock) isBlock()       {}

// Page is the resolved geometry of one slide.
type Page struct {
	// Title is the title band, nil when the slide has no heading. Cover
	// slides carry their title in Blocks instead.
	Title  *TextBlock
	Blocks []Block
	// Content is the region below the title band.
	Content Rect
	// Sections holds the two exact halves of a split slide.
	Sections []Rect
}

// Images lists the image frames on the page in shape order.
func (p Page) Images() []ImageFrame {
	var out []ImageFrame
	for _, b := range p.Blocks {
		if img, ok := b.(ImageFrame); ok {
			out = append(out, img)
		}
	}
	return out
}

// ResolveDeck resolves every slide in order.
func ResolveDeck(d *deck.Deck) []Page {
	slides := d.Slides()
	pages := make([]Page, 0, len(slides))
	for _, s := range slides {
		pages = append(pages, Resolve(s))
	}
	return pages
}

// Resolve computes the geometry of one slide.
func Resolve(s deck.Slide) Page {
	if cover, ok := s.(deck.TitleSlide); ok {
		return resolveCover(cover)
	}

	var p Page
	p.Content = contentRegion(s.Heading() != "")
	if h := s.Heading(); h != "" {
		band := titleBand(h)
		p.Title = &band
	}

	switch s := s.(type) {
	case deck.BulletSlide:
		p.Blocks = []Block{resolveContent(s.Body(), p.Content)}
	case deck.ImageSlide:
		p.Blocks = []Block{resolveContent(s.Body(), p.Content)}
	case deck.TableSlide:
		p.Blocks = []Block{resolveContent(s.Body(), p.Content)}
	case deck.SplitSlide:
		halves := SplitHalves(p.Content)
		p.Sections = halves[:]
		sections := s.Sections()
		p.Blocks = []Block{
			resolveContent(sections[0], Rect{X: halves[0].X, Y: halves[0].Y, W: halves[0].W - SectionInset, H: halves[0].H}),
			resolveContent(sections[1], Rect{X: halves[1].X + SectionInset, Y: halves[1].Y, W: halves[1].W - SectionInset, H: halves[1].H}),
		}
	default:
		panic(fmt.Sprintf("layout: unhandled slide type %T", s))
	}
	return p
}

// SplitHalves divides region into a left half of floor(w/2) and a right half
// holding the rest.
func SplitHalves(region Rect) [2]Rect {
	left := region.W / 2
	return [2]Rect{
		{X: region.X, Y: region.Y, W: left, H: region.H},
		{X: region.X + left, Y: region.Y, W: region.W - left, H: region.H},
	}
}

func contentRegion(titled bool) Rect {
	r := Rect{X: Margin, Y: Margin, W: SlideWidth - 2*Margin, H: SlideHeight - 2*Margin}
	if titled {
		offset := TitleBandHeight + BandGap
		r.Y += offset
		r.H -= offset
	}
	return r
}

func titleBand(text string) TextBlock {
	return TextBlock{
		Frame:      Rect{X: Margin, Y: Margin, W: SlideWidth - 2*Margin, H: TitleBandHeight},
		Role:       RoleTitle,
		Align:      AlignLeft,
		Anchor:     AnchorMiddle,
		Paragraphs: []Paragraph{{Text: text, Size: TitleBandSize, Bold: true}},
	}
}

func resolveCover(s deck.TitleSlide) Page {
	width := SlideWidth - 2*Margin
	height := CoverTitleHeight
	if s.Subtitle() != "" {
		height += BandGap + CoverSubtitleHeight
	}
	top := (SlideHeight - height) / 2

	p := Page{Content: Rect{X: Margin, Y: top, W: width, H: height}}
	p.Blocks = append(p.Blocks, TextBlock{
		Frame:      Rect{X: Margin, Y: top, W: width, H: CoverTitleHeight},
		Role:       RoleTitle,
		Align:      AlignCenter,
		Anchor:     AnchorMiddle,
		Paragraphs: []Paragraph{{Text: s.Heading(), Size: CoverTitleSize, Bold: true}},
	})
	if sub := s.Subtitle(); sub != "" {
		p.Blocks = append(p.Blocks, TextBlock{
			Frame:      Rect{X: Margin, Y: top + CoverTitleHeight + BandGap, W: width, H: CoverSubtitleHeight},
			Role:       RoleSubtitle,
			Align:      AlignCenter,
			Anchor:     AnchorTop,
			Paragraphs: []Paragraph{{Text: sub, Size: CoverSubtitleSize}},
		})
	}
	return p
}

func resolveContent(c deck.Content, region Rect) Block {
	switch c := c.(type) {
	case deck.BulletContent:
		return TextBlock{
			Frame:      region,
			Role:       RoleBody,
			Align:      AlignLeft,
			Anchor:     AnchorTop,
			Paragraphs: bulletParagraphs(nil, c.Points(), 0),
		}
	case deck.ImageContent:
		return ImageFrame{Frame: region, URL: c.URL(), Alt: c.Alt()}
	case deck.TableContent:
		return resolveTable(c, region)
	default:
		panic(fmt.Sprintf("layout: unhandled content type %T", c))
	}
}

// BulletSize is the font size for a nesting level.
func BulletSize(level int) int {
	return max(BulletBaseSize-BulletSizeStep*level, BulletMinSize)
}

// BulletGlyph cycles disc, dash and square by level.
func BulletGlyph(level int) string {
	return bulletGlyphs[level%len(bulletGlyphs)]
}

func bulletParagraphs(out []Paragraph, nodes []deck.BulletNode, level int) []Paragraph {
	for _, n := range nodes {
		out = append(out, Paragraph{
			Text:    n.Text(),
			Level:   level,
			Size:    BulletSize(level),
			Bullet:  BulletGlyph(level),
			MarginL: int64(level+1) * BulletIndentStep,
			Indent:  -BulletIndentStep,
		})
		out = bulletParagraphs(out, n.Children(), level+1)
	}
	return out
}

func resolveTable(c deck.TableContent, region Rect) TableBlock {
	cols := c.Columns()
	rows := c.Rows()

	t := TableBlock{
		Frame:      region,
		ColWidths:  splitEven(region.W, cols),
		RowHeights: splitEven(region.H, len(rows)+1),
		Header:     make([]Cell, cols),
		Rows:       make([][]Cell, len(rows)),
	}
	for i, h := range c.Headers() {
		t.Header[i] = Cell{Text: h, Size: TableHeaderSize, Bold: true}
	}
	for i, r := range rows {
		t.Rows[i] = make([]Cell, cols)
		for j := range cols {
			text := ""
			if j < len(r) {
				text = r[j]
			}
			t.Rows[i][j] = Cell{Text: text, Size: TableBodySize}
		}
	}
	return t
}
