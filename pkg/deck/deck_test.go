package deck

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDecodeSlideVariants(t *testing.T) {
	input := `{
		"filename": "review",
		"slides": [
			{"type": "title", "title": "Q1 Review", "subtitle": "Engineering"},
			{"type": "bullet", "title": "Agenda", "points": [{"text": "A", "children": [{"text": "B"}]}]},
			{"type": "image", "url": "https://example.com/chart.png", "alt": "chart"},
			{"type": "table", "headers": ["k", "v"], "rows": [["a", "1"], ["b"]]},
			{"type": "split", "sections": [
				{"type": "bullet", "points": [{"text": "left"}]},
				{"type": "image", "url": "http://example.com/x.jpg"}
			]}
		]
	}`

	d, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got, want := d.Filename(), "review.pptx"; got != want {
		t.Fatalf("Filename() = %q, want %q", got, want)
	}
	slides := d.Slides()
	if len(slides) != 5 {
		t.Fatalf("len(Slides()) = %d, want 5", len(slides))
	}

	title, ok := slides[0].(TitleSlide)
	if !ok || title.Heading() != "Q1 Review" || title.Subtitle() != "Engineering" {
		t.Fatalf("slide 0 = %#v, want title slide Q1 Review/Engineering", slides[0])
	}

	bullets, ok := slides[1].(BulletSlide)
	if !ok {
		t.Fatalf("slide 1 is %T, want BulletSlide", slides[1])
	}
	points := bullets.Body().Points()
	if len(points) != 1 || points[0].Text() != "A" || len(points[0].Children()) != 1 || points[0].Children()[0].Text() != "B" {
		t.Fatalf("bullet tree = %#v, want A -> B", points)
	}

	table, ok := slides[3].(TableSlide)
	if !ok {
		t.Fatalf("slide 3 is %T, want TableSlide", slides[3])
	}
	if rows := table.Body().Rows(); len(rows[1]) != 1 {
		t.Fatalf("short row was altered during construction: %v", rows)
	}

	split, ok := slides[4].(SplitSlide)
	if !ok {
		t.Fatalf("slide 4 is %T, want SplitSlide", slides[4])
	}
	if split.Layout() != LeftRight {
		t.Fatalf("Layout() = %q, want default %q", split.Layout(), LeftRight)
	}
	sections := split.Sections()
	if _, ok := sections[0].(BulletContent); !ok {
		t.Fatalf("left section is %T, want BulletContent", sections[0])
	}
	if _, ok := sections[1].(ImageContent); !ok {
		t.Fatalf("right section is %T, want ImageContent", sections[1])
	}
}

func TestDecodeStructuralErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		constraint Constraint
		path       string
	}{
		{
			name:       "empty deck",
			input:      `{"slides": []}`,
			constraint: ConstraintEmptyDeck,
			path:       "slides",
		},
		{
			name:       "unknown slide type",
			input:      `{"slides": [{"type": "chart"}]}`,
			constraint: ConstraintSlideType,
			path:       "slides[0].type",
		},
		{
			name:       "title without title",
			input:      `{"slides": [{"type": "title", "subtitle": "x"}]}`,
			constraint: ConstraintRequiredField,
			path:       "slides[0].title",
		},
		{
			name:       "relative image url",
			input:      `{"slides": [{"type": "image", "url": "/img.png"}]}`,
			constraint: ConstraintAbsoluteURL,
			path:       "slides[0].url",
		},
		{
			name:       "table without headers",
			input:      `{"slides": [{"type": "table", "headers": [], "rows": []}]}`,
			constraint: ConstraintTableHeaders,
			path:       "slides[0].headers",
		},
		{
			name:       "split with one section",
			input:      `{"slides": [{"type": "split", "sections": [{"type": "bullet", "points": []}]}]}`,
			constraint: ConstraintSectionCount,
			path:       "slides[0].sections",
		},
		{
			name:       "split with unknown layout",
			input:      `{"slides": [{"type": "split", "layout": "top-bottom", "sections": [{"type": "bullet"}, {"type": "bullet"}]}]}`,
			constraint: ConstraintSplitLayout,
			path:       "slides[0].layout",
		},
		{
			name:       "split section of type title",
			input:      `{"slides": [{"type": "split", "sections": [{"type": "title"}, {"type": "bullet"}]}]}`,
			constraint: ConstraintSectionType,
			path:       "slides[0].sections[0].type",
		},
		{
			name:       "bullet without text",
			input:      `{"slides": [{"type": "bullet", "points": [{"children": []}]}]}`,
			constraint: ConstraintRequiredField,
			path:       "slides[0].points[0].text",
		},
		{
			name:       "five levels",
			input:      `{"slides": [{"type": "bullet", "points": [` + nested(5) + `]}]}`,
			constraint: ConstraintMaxDepth,
			path:       "slides[0].points[0].children[0].children[0].children[0].children",
		},
		{
			name:       "eleven siblings",
			input:      `{"slides": [{"type": "bullet", "points": [` + siblings(11) + `]}]}`,
			constraint: ConstraintMaxChildren,
			path:       "slides[0].points",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			var se *StructuralError
			if !errors.As(err, &se) {
				t.Fatalf("Decode() error = %v, want StructuralError", err)
			}
			if se.Constraint != tt.constraint {
				t.Fatalf("Constraint = %q, want %q", se.Constraint, tt.constraint)
			}
			if se.Path != tt.path {
				t.Fatalf("Path = %q, want %q", se.Path, tt.path)
			}
			if !strings.Contains(se.Error(), string(tt.constraint)) {
				t.Fatalf("Error() = %q does not name the constraint", se.Error())
			}
		})
	}
}

func TestDecodeAcceptsLimits(t *testing.T) {
	input := `{"slides": [{"type": "bullet", "points": [` + nested(4) + `,` + siblings(9) + `]}]}`
	if _, err := Decode(strings.NewReader(input)); err != nil {
		t.Fatalf("Decode() error = %v, want depth 4 and 10 siblings to pass", err)
	}
}

func TestDecodeLevelShim(t *testing.T) {
	input := `{"slides": [{"type": "bullet", "points": [
		{"text": "A", "level": 0},
		{"text": "B", "level": 1},
		{"text": "C", "level": 2},
		{"text": "D", "level": 1},
		{"text": "E", "level": 0}
	]}]}`

	d, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	points := d.Slides()[0].(BulletSlide).Body().Points()
	if got := render(points); got != "A(B(C) D) E" {
		t.Fatalf("renested tree = %q, want %q", got, "A(B(C) D) E")
	}
	if n := d.Notices(); len(n) != 0 {
		t.Fatalf("Notices() = %v, want none for consistent levels", n)
	}
}

func TestDecodeLevelShimReportsDisagreement(t *testing.T) {
	input := `{"slides": [{"type": "bullet", "points": [
		{"text": "A", "level": 2, "children": [{"text": "B"}]},
		{"text": "C", "level": 0}
	]}]}`

	d, err := Decode(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := render(d.Slides()[0].(BulletSlide).Body().Points()); got != "A(B) C" {
		t.Fatalf("tree = %q, want nesting to win", got)
	}
	notices := d.Notices()
	if len(notices) != 1 || !strings.Contains(notices[0], "slides[0]") {
		t.Fatalf("Notices() = %v, want one notice for slides[0]", notices)
	}
}

func TestDecodeYAML(t *testing.T) {
	input := `
filename: deck.pptx
slides:
  - type: title
    title: Hello
  - type: table
    title: Numbers
    headers: [a, b]
    rows:
      - ["1", "2"]
`
	d, err := DecodeYAML(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeYAML() error = %v", err)
	}
	if d.Len() != 2 || d.Filename() != "deck.pptx" {
		t.Fatalf("deck = %d slides, %q; want 2 slides, deck.pptx", d.Len(), d.Filename())
	}
}

func TestParseDetectsFormat(t *testing.T) {
	if _, err := Parse([]byte(`  {"slides": [{"type": "title", "title": "x"}]}`)); err != nil {
		t.Fatalf("Parse(json) error = %v", err)
	}
	if _, err := Parse([]byte("slides:\n  - type: title\n    title: x\n")); err != nil {
		t.Fatalf("Parse(yaml) error = %v", err)
	}
}

func TestNormalizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: DefaultFilename},
		{in: "  ", want: DefaultFilename},
		{in: "report", want: "report.pptx"},
		{in: "Report.PPTX", want: "Report.PPTX"},
		{in: "../../etc/passwd", want: "passwd.pptx"},
		{in: `C:\decks\q1.pptx`, want: "q1.pptx"},
		{in: "..", want: DefaultFilename},
	}
	for _, tt := range tests {
		if got := NormalizeFilename(tt.in); got != tt.want {
			t.Errorf("NormalizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	body, err := NewTableContent([]string{"a"}, [][]string{{"1"}})
	if err != nil {
		t.Fatalf("NewTableContent() error = %v", err)
	}
	rows := body.Rows()
	rows[0][0] = "changed"
	headers := body.Headers()
	headers[0] = "changed"

	if body.Rows()[0][0] != "1" || body.Headers()[0] != "a" {
		t.Fatalf("mutating accessor results changed the model")
	}
}

func nested(depth int) string {
	s := `{"text": "leaf"}`
	for i := 1; i < depth; i++ {
		s = fmt.Sprintf(`{"text": "l%d", "children": [%s]}`, depth-i, s)
	}
	return s
}

func siblings(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"text": "s%d"}`, i)
	}
	return strings.Join(parts, ",")
}

func render(nodes []BulletNode) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		s := n.Text()
		if n.HasChildren() {
			s += "(" + render(n.Children()) + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
