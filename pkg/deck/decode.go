package deck

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

// Slide type discriminants used on the wire.
const (
	TypeTitle  = "title"
	TypeBullet = "bullet"
	TypeImage  = "image"
	TypeTable  = "table"
	TypeSplit  = "split"
)

type wireDeck struct {
	Slides   []wireSlide `json:"slides" yaml:"slides"`
	Filename *string     `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// wireSlide also carries split sections, which reuse the slide shape minus
// title, layout and sections.
type wireSlide struct {
	Type     string      `json:"type" yaml:"type"`
	Title    *string     `json:"title,omitempty" yaml:"title,omitempty"`
	Subtitle *string     `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Points   []wirePoint `json:"points,omitempty" yaml:"points,omitempty"`
	URL      *string     `json:"url,omitempty" yaml:"url,omitempty"`
	Alt      *string     `json:"alt,omitempty" yaml:"alt,omitempty"`
	Headers  []string    `json:"headers,omitempty" yaml:"headers,omitempty"`
	Rows     [][]string  `json:"rows,omitempty" yaml:"rows,omitempty"`
	Layout   string      `json:"layout,omitempty" yaml:"layout,omitempty"`
	Sections []wireSlide `json:"sections,omitempty" yaml:"sections,omitempty"`
}

type wirePoint struct {
	Text     *string     `json:"text" yaml:"text"`
	Level    *int        `json:"level,omitempty" yaml:"level,omitempty"`
	Children []wirePoint `json:"children,omitempty" yaml:"children,omitempty"`
}

// Decode reads a JSON deck and builds the validated model.
func Decode(r io.Reader) (*Deck, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var w wireDeck
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode deck: %w: %w", ErrMalformed, err)
	}
	return fromWire(w)
}

// DecodeYAML reads the same shape as Decode from YAML.
func DecodeYAML(r io.Reader) (*Deck, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var w wireDeck
	if err := dec.Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &StructuralError{Path: "slides", Constraint: ConstraintEmptyDeck, Detail: "empty document"}
		}
		return nil, fmt.Errorf("decode deck: %w: %w", ErrMalformed, err)
	}
	return fromWire(w)
}

// Parse decodes data as JSON, or as YAML when the first non-blank byte does
// not open a JSON object.
func Parse(data []byte) (*Deck, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return Decode(bytes.NewReader(trimmed))
	}
	return DecodeYAML(bytes.NewReader(trimmed))
}

func fromWire(w wireDeck) (*Deck, error) {
	if len(w.Slides) == 0 {
		return nil, &StructuralError{Path: "slides", Constraint: ConstraintEmptyDeck, Detail: "a deck needs at least one slide"}
	}

	var notices []string
	slides := make([]Slide, 0, len(w.Slides))
	for i, ws := range w.Slides {
		at := indexPath("slides", i)
		s, n, err := slideFromWire(ws)
		if err != nil {
			return nil, wrapAt(at, err)
		}
		for _, msg := range n {
			notices = append(notices, at+": "+msg)
		}
		slides = append(slides, s)
	}

	filename := ""
	if w.Filename != nil {
		filename = *w.Filename
	}
	d, err := New(filename, slides...)
	if err != nil {
		return nil, err
	}
	d.notices = notices
	return d, nil
}

func slideFromWire(ws wireSlide) (Slide, []string, error) {
	title := deref(ws.Title)

	switch strings.ToLower(strings.TrimSpace(ws.Type)) {
	case TypeTitle:
		if ws.Title == nil {
			return nil, nil, &StructuralError{Path: "title", Constraint: ConstraintRequiredField, Detail: "title slide needs a title"}
		}
		s, err := NewTitleSlide(title, deref(ws.Subtitle))
		return s, nil, err
	case TypeBullet:
		body, notices, err := bulletsFromWire(ws.Points)
		if err != nil {
			return nil, nil, err
		}
		return BulletSlide{title: title, body: body}, notices, nil
	case TypeImage:
		body, err := imageFromWire(ws)
		if err != nil {
			return nil, nil, err
		}
		return ImageSlide{title: title, body: body}, nil, nil
	case TypeTable:
		body, err := tableFromWire(ws)
		if err != nil {
			return nil, nil, err
		}
		return TableSlide{title: title, body: body}, nil, nil
	case TypeSplit:
		if len(ws.Sections) != 2 {
			return nil, nil, &StructuralError{Path: "sections", Constraint: ConstraintSectionCount, Detail: "split slide needs exactly 2 sections, got " + itoa(len(ws.Sections))}
		}
		var notices []string
		sections := make([]Content, 0, 2)
		for i, sec := range ws.Sections {
			at := indexPath("sections", i)
			c, n, err := sectionFromWire(sec)
			if err != nil {
				return nil, nil, wrapAt(at, err)
			}
			for _, msg := range n {
				notices = append(notices, at+": "+msg)
			}
			sections = append(sections, c)
		}
		s, err := NewSplitSlide(title, SplitLayout(ws.Layout), sections...)
		return s, notices, err
	case "":
		return nil, nil, &StructuralError{Path: "type", Constraint: ConstraintSlideType, Detail: "slide type is required"}
	default:
		return nil, nil, &StructuralError{Path: "type", Constraint: ConstraintSlideType, Detail: "unknown slide type " + quote(ws.Type)}
	}
}

func sectionFromWire(ws wireSlide) (Content, []string, error) {
	switch strings.ToLower(strings.TrimSpace(ws.Type)) {
	case TypeBullet:
		return bulletsFromWire(ws.Points)
	case TypeImage:
		c, err := imageFromWire(ws)
		return c, nil, err
	case TypeTable:
		c, err := tableFromWire(ws)
		return c, nil, err
	default:
		return nil, nil, &StructuralError{Path: "type", Constraint: ConstraintSectionType, Detail: "section type must be bullet, image or table, got " + quote(ws.Type)}
	}
}

func bulletsFromWire(points []wirePoint) (BulletContent, []string, error) {
	nodes, notices, err := nodesFromWire("points", points, 0)
	if err != nil {
		return BulletContent{}, nil, err
	}
	body, err := NewBulletContent(nodes...)
	if err != nil {
		return BulletContent{}, nil, err
	}
	return body, notices, nil
}

func nodesFromWire(at string, points []wirePoint, depth int) ([]BulletNode, []string, error) {
	var notices []string
	if flatWithLevels(points) {
		var n []string
		points, n = renest(points, depth)
		for _, msg := range n {
			notices = append(notices, at+": "+msg)
		}
	}

	nodes := make([]BulletNode, 0, len(points))
	for i, p := range points {
		here := indexPath(at, i)
		if p.Text == nil {
			return nil, nil, &StructuralError{Path: here + ".text", Constraint: ConstraintRequiredField, Detail: "bullet needs text"}
		}
		if p.Level != nil && *p.Level != depth {
			notices = append(notices, fmt.Sprintf("%s: explicit level %d ignored, nesting places it at level %d", here, *p.Level, depth))
		}
		children, n, err := nodesFromWire(here+".children", p.Children, depth+1)
		if err != nil {
			return nil, nil, err
		}
		notices = append(notices, n...)
		nodes = append(nodes, BulletNode{text: *p.Text, children: children})
	}
	return nodes, notices, nil
}

// flatWithLevels reports whether a sibling list carries explicit levels and
// no nesting, the older schema shape.
func flatWithLevels(points []wirePoint) bool {
	levelled := false
	for _, p := range points {
		if len(p.Children) > 0 {
			return false
		}
		if p.Level != nil {
			levelled = true
		}
	}
	return levelled
}

type levelledPoint struct {
	point wirePoint
	kids  []*levelledPoint
}

// renest turns a flat list with absolute levels into a nested tree rooted at
// depth. A node may only open one level below its predecessor; deeper jumps
// are clamped and reported.
func renest(points []wirePoint, depth int) ([]wirePoint, []string) {
	var (
		notices []string
		roots   []*levelledPoint
		open    []*levelledPoint
	)
	for i, p := range points {
		want := 0
		if p.Level != nil {
			want = *p.Level - depth
		}
		if want < 0 {
			notices = append(notices, fmt.Sprintf("entry %d: level %d is above the list, placed at level %d", i, *p.Level, depth))
			want = 0
		}
		if want > len(open) {
			notices = append(notices, fmt.Sprintf("entry %d: level %d skips a level, placed at level %d", i, *p.Level, depth+len(open)))
			want = len(open)
		}

		actual := depth + want
		n := &levelledPoint{point: wirePoint{Text: p.Text, Level: &actual}}
		open = open[:want]
		if want == 0 {
			roots = append(roots, n)
		} else {
			parent := open[want-1]
			parent.kids = append(parent.kids, n)
		}
		open = append(open, n)
	}
	return flatten(roots), notices
}

func flatten(nodes []*levelledPoint) []wirePoint {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]wirePoint, 0, len(nodes))
	for _, n := range nodes {
		p := n.point
		p.Children = flatten(n.kids)
		out = append(out, p)
	}
	return out
}

func imageFromWire(ws wireSlide) (ImageContent, error) {
	if ws.URL == nil {
		return ImageContent{}, &StructuralError{Path: "url", Constraint: ConstraintRequiredField, Detail: "image needs a url"}
	}
	return NewImageContent(*ws.URL, deref(ws.Alt))
}

func tableFromWire(ws wireSlide) (TableContent, error) {
	if ws.Headers == nil {
		return TableContent{}, &StructuralError{Path: "headers", Constraint: ConstraintRequiredField, Detail: "table needs headers"}
	}
	return NewTableContent(ws.Headers, ws.Rows)
}

func checkAbsoluteURL(at, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &StructuralError{Path: at, Constraint: ConstraintAbsoluteURL, Detail: "image url must be absolute, got " + quote(raw)}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	default:
		return &StructuralError{Path: at, Constraint: ConstraintAbsoluteURL, Detail: "image url scheme must be http or https, got " + quote(u.Scheme)}
	}
}

func wrapAt(at string, err error) error {
	var se *StructuralError
	if errors.As(err, &se) {
		return se.within(at)
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
