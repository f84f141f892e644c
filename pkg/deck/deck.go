// Package deck holds the validated, read-only model of a slide deck.
//
// A Deck is built once, either through the constructors in this package or by
// decoding the wire representation, and is never mutated afterwards. Every
// accessor hands out copies so consumers can traverse the tree freely.
package deck

import (
	"path"
	"slices"
	"strings"
)

const (
	// MaxDepth is the number of bullet nesting levels a slide may use.
	MaxDepth = 4
	// MaxChildren caps every sibling list in a bullet tree.
	MaxChildren = 10
	// DefaultFilename is used when a deck does not name its output.
	DefaultFilename = "presentation.pptx"
)

// SplitLayout names how a split slide arranges its two sections.
type SplitLayout string

// LeftRight places the first section on the left half and the second on the right.
const LeftRight SplitLayout = "left-right"

// Slide is one of TitleSlide, BulletSlide, ImageSlide, TableSlide or SplitSlide.
type Slide interface {
	// Heading returns the slide title, empty when the slide has none.
	Heading() string
	isSlide()
}

// Content is the body of a slide or of one split section: BulletContent,
// ImageContent or TableContent.
type Content interface {
	isContent()
}

// Deck is an ordered list of slides plus the output filename.
type Deck struct {
	slides   []Slide
	filename string
	notices  []string
}

// New assembles a deck from already constructed slides.
func New(filename string, slides ...Slide) (*Deck, error) {
	if len(slides) == 0 {
		return nil, &StructuralError{Path: "slides", Constraint: ConstraintEmptyDeck, Detail: "a deck needs at least one slide"}
	}
	for i, s := range slides {
		if s == nil {
			return nil, &StructuralError{Path: indexPath("slides", i), Constraint: ConstraintSlideType, Detail: "nil slide"}
		}
	}
	return &Deck{slides: slices.Clone(slides), filename: NormalizeFilename(filename)}, nil
}

// Slides returns the slides in presentation order.
func (d *Deck) Slides() []Slide { return slices.Clone(d.slides) }

// Len reports the number of slides.
func (d *Deck) Len() int { return len(d.slides) }

// Filename returns the normalized output filename.
func (d *Deck) Filename() string { return d.filename }

// Notices lists compatibility adjustments made while decoding, such as
// explicit bullet levels that disagreed with the nesting.
func (d *Deck) Notices() []string { return slices.Clone(d.notices) }

// NormalizeFilename reduces name to a base name ending in .pptx.
func NormalizeFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return DefaultFilename
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return DefaultFilename
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pptx") {
		name += ".pptx"
	}
	return name
}

// TitleSlide is a cover slide with a title and optional subtitle.
type TitleSlide struct {
	title    string
	subtitle string
}

// NewTitleSlide builds a title slide. The title is required.
func NewTitleSlide(title, subtitle string) (TitleSlide, error) {
	if title == "" {
		return TitleSlide{}, &StructuralError{Path: "title", Constraint: ConstraintRequiredField, Detail: "title slide needs a title"}
	}
	return TitleSlide{title: title, subtitle: subtitle}, nil
}

func (s TitleSlide) Heading() string  { return s.title }
func (s TitleSlide) Subtitle() string { return s.subtitle }
func (TitleSlide) isSlide()           {}

// BulletSlide is an optional title over a bullet tree.
type BulletSlide struct {
	title string
	body  BulletContent
}

// NewBulletSlide builds a bullet slide from top-level points.
func NewBulletSlide(title string, points ...BulletNode) (BulletSlide, error) {
	body, err := NewBulletContent(points...)
	if err != nil {
		return BulletSlide{}, err
	}
	return BulletSlide{title: title, body: body}, nil
}

func (s BulletSlide) Heading() string     { return s.title }
func (s BulletSlide) Body() BulletContent { return s.body }
func (BulletSlide) isSlide()              {}

// ImageSlide shows one external image under an optional title.
type ImageSlide struct {
	title string
	body  ImageContent
}

// NewImageSlide builds an image slide. url must be an absolute http(s) URI.
func NewImageSlide(title, url, alt string) (ImageSlide, error) {
	body, err := NewImageContent(url, alt)
	if err != nil {
		return ImageSlide{}, err
	}
	return ImageSlide{title: title, body: body}, nil
}

func (s ImageSlide) Heading() string    { return s.title }
func (s ImageSlide) Body() ImageContent { return s.body }
func (ImageSlide) isSlide()             {}

// TableSlide shows a header row over data rows.
type TableSlide struct {
	title string
	body  TableContent
}

// NewTableSlide builds a table slide. Rows whose width differs from the
// header count are kept as given; the layout normalizes them.
func NewTableSlide(title string, headers []string, rows [][]string) (TableSlide, error) {
	body, err := NewTableContent(headers, rows)
	if err != nil {
		return TableSlide{}, err
	}
	return TableSlide{title: title, body: body}, nil
}

func (s TableSlide) Heading() string    { return s.title }
func (s TableSlide) Body() TableContent { return s.body }
func (TableSlide) isSlide()             {}

// SplitSlide places two content sections side by side.
type SplitSlide struct {
	title    string
	layout   SplitLayout
	sections [2]Content
}

// NewSplitSlide builds a split slide. An empty layout means LeftRight.
func NewSplitSlide(title string, layout SplitLayout, sections ...Content) (SplitSlide, error) {
	if layout == "" {
		layout = LeftRight
	}
	if layout != LeftRight {
		return SplitSlide{}, &StructuralError{Path: "layout", Constraint: ConstraintSplitLayout, Detail: "unsupported split layout " + quote(string(layout))}
	}
	if len(sections) != 2 {
		return SplitSlide{}, &StructuralError{Path: "sections", Constraint: ConstraintSectionCount, Detail: "split slide needs exactly 2 sections, got " + itoa(len(sections))}
	}
	for i, c := range sections {
		if c == nil {
			return SplitSlide{}, &StructuralError{Path: indexPath("sections", i), Constraint: ConstraintSectionType, Detail: "nil section"}
		}
	}
	return SplitSlide{title: title, layout: layout, sections: [2]Content{sections[0], sections[1]}}, nil
}

func (s SplitSlide) Heading() string      { return s.title }
func (s SplitSlide) Layout() SplitLayout  { return s.layout }
func (s SplitSlide) Sections() [2]Content { return s.sections }
func (SplitSlide) isSlide()               {}

// BulletNode is one bullet and its nested children.
type BulletNode struct {
	text     string
	children []BulletNode
}

// Bullet builds a node. Depth and fan-out are checked when the node is
// attached to a slide or section.
func Bullet(text string, children ...BulletNode) BulletNode {
	return BulletNode{text: text, children: slices.Clone(children)}
}

func (n BulletNode) Text() string           { return n.text }
func (n BulletNode) Children() []BulletNode { return slices.Clone(n.children) }
func (n BulletNode) HasChildren() bool      { return len(n.children) > 0 }

// BulletContent is a bullet tree body.
type BulletContent struct {
	points []BulletNode
}

// NewBulletContent validates depth and fan-out of the given tree.
func NewBulletContent(points ...BulletNode) (BulletContent, error) {
	if err := checkTree("points", points, 0); err != nil {
		return BulletContent{}, err
	}
	return BulletContent{points: slices.Clone(points)}, nil
}

func (c BulletContent) Points() []BulletNode { return slices.Clone(c.points) }
func (BulletContent) isContent()             {}

// ImageContent references an external image.
type ImageContent struct {
	url string
	alt string
}

// NewImageContent validates that url is absolute.
func NewImageContent(url, alt string) (ImageContent, error) {
	if err := checkAbsoluteURL("url", url); err != nil {
		return ImageContent{}, err
	}
	return ImageContent{url: url, alt: alt}, nil
}

func (c ImageContent) URL() string { return c.url }
func (c ImageContent) Alt() string { return c.alt }
func (ImageContent) isContent()    {}

// TableContent is a header row plus data rows.
type TableContent struct {
	headers []string
	rows    [][]string
}

// NewTableContent requires at least one header.
func NewTableContent(headers []string, rows [][]string) (TableContent, error) {
	if len(headers) == 0 {
		return TableContent{}, &StructuralError{Path: "headers", Constraint: ConstraintTableHeaders, Detail: "table needs at least one header"}
	}
	copied := make([][]string, len(rows))
	for i, r := range rows {
		copied[i] = slices.Clone(r)
	}
	return TableContent{headers: slices.Clone(headers), rows: copied}, nil
}

func (c TableContent) Headers() []string { return slices.Clone(c.headers) }
func (c TableContent) Columns() int      { return len(c.headers) }

// Rows returns the data rows exactly as given, not normalized.
func (c TableContent) Rows() [][]string {
	out := make([][]string, len(c.rows))
	for i, r := range c.rows {
		out[i] = slices.Clone(r)
	}
	return out
}

func (TableContent) isContent() {}

func checkTree(at string, nodes []BulletNode, depth int) error {
	if len(nodes) == 0 {
		return nil
	}
	if depth >= MaxDepth {
		return &StructuralError{Path: at, Constraint: ConstraintMaxDepth, Detail: "bullets nest deeper than " + itoa(MaxDepth) + " levels"}
	}
	if len(nodes) > MaxChildren {
		return &StructuralError{Path: at, Constraint: ConstraintMaxChildren, Detail: itoa(len(nodes)) + " entries exceed the limit of " + itoa(MaxChildren)}
	}
	for i, n := range nodes {
		if err := checkTree(indexPath(at, i)+".children", n.children, depth+1); err != nil {
			return err
		}
	}
	return nil
}
