package layout

import (
	"testing"

	"pptxd/pkg/deck"
)

func TestResolveCoverCentresPair(t *testing.T) {
	s, err := deck.NewTitleSlide("Q1 Review", "Engineering")
	if err != nil {
		t.Fatalf("NewTitleSlide() error = %v", err)
	}
	p := Resolve(s)

	if p.Title != nil {
		t.Fatalf("cover slide should not get a title band")
	}
	if len(p.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(p.Blocks))
	}
	title := p.Blocks[0].(TextBlock)
	sub := p.Blocks[1].(TextBlock)

	if title.Paragraphs[0].Text != "Q1 Review" || sub.Paragraphs[0].Text != "Engineering" {
		t.Fatalf("texts = %q/%q", title.Paragraphs[0].Text, sub.Paragraphs[0].Text)
	}
	if title.Align != AlignCenter || sub.Align != AlignCenter {
		t.Fatalf("cover text should be centred, got %q/%q", title.Align, sub.Align)
	}
	top := title.Frame.Y
	bottom := SlideHeight - sub.Frame.Bottom()
	if diff := top - bottom; diff < -1 || diff > 1 {
		t.Fatalf("pair not vertically centred: top gap %d, bottom gap %d", top, bottom)
	}
	if sub.Frame.Y-title.Frame.Bottom() != BandGap {
		t.Fatalf("gap between title and subtitle = %d, want %d", sub.Frame.Y-title.Frame.Bottom(), BandGap)
	}
	if title.Paragraphs[0].Size <= sub.Paragraphs[0].Size {
		t.Fatalf("title size %d should exceed subtitle size %d", title.Paragraphs[0].Size, sub.Paragraphs[0].Size)
	}
}

func TestResolveCoverWithoutSubtitle(t *testing.T) {
	s, _ := deck.NewTitleSlide("Only", "")
	p := Resolve(s)
	if len(p.Blocks) != 1 {
		t.Fatalf("len(Blocks) = %d, want 1", len(p.Blocks))
	}
	f := p.Blocks[0].Bounds()
	if f.Y != (SlideHeight-CoverTitleHeight)/2 {
		t.Fatalf("title top = %d, want %d", f.Y, (SlideHeight-CoverTitleHeight)/2)
	}
}

func TestBulletLevelsStepDown(t *testing.T) {
	s, err := deck.NewBulletSlide("Agenda",
		deck.Bullet("A", deck.Bullet("B", deck.Bullet("C", deck.Bullet("D")))),
	)
	if err != nil {
		t.Fatalf("NewBulletSlide() error = %v", err)
	}
	p := Resolve(s)
	body := p.Blocks[0].(TextBlock)

	want := []string{"A", "B", "C", "D"}
	if len(body.Paragraphs) != len(want) {
		t.Fatalf("len(Paragraphs) = %d, want %d", len(body.Paragraphs), len(want))
	}
	for i, para := range body.Paragraphs {
		if para.Text != want[i] || para.Level != i {
			t.Fatalf("paragraph %d = %q level %d, want %q level %d", i, para.Text, para.Level, want[i], i)
		}
		if i > 0 {
			prev := body.Paragraphs[i-1]
			if para.Size > prev.Size || (para.Size == prev.Size && para.Size != BulletMinSize) {
				t.Fatalf("level %d size %d not smaller than parent %d", i, para.Size, prev.Size)
			}
			if para.MarginL <= prev.MarginL {
				t.Fatalf("level %d margin %d not deeper than parent %d", i, para.MarginL, prev.MarginL)
			}
			if para.Bullet == prev.Bullet {
				t.Fatalf("level %d reuses parent glyph %q", i, para.Bullet)
			}
		}
	}
}

func TestBulletSizeFloor(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{0, 28}, {1, 24}, {2, 20}, {3, 16}, {4, 12}, {9, 12},
	}
	for _, tt := range tests {
		if got := BulletSize(tt.level); got != tt.want {
			t.Errorf("BulletSize(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
	if BulletGlyph(0) != BulletGlyph(3) {
		t.Errorf("glyphs should cycle every three levels")
	}
}

func TestTitleBandShiftsContent(t *testing.T) {
	titled, _ := deck.NewBulletSlide("Heading", deck.Bullet("x"))
	bare, _ := deck.NewBulletSlide("", deck.Bullet("x"))

	pt, pb := Resolve(titled), Resolve(bare)
	if pt.Title == nil || pb.Title != nil {
		t.Fatalf("title band presence wrong: titled=%v bare=%v", pt.Title != nil, pb.Title != nil)
	}
	if pb.Content.Y != Margin {
		t.Fatalf("untitled content top = %d, want %d", pb.Content.Y, Margin)
	}
	if pt.Content.Y != pt.Title.Frame.Bottom()+BandGap {
		t.Fatalf("titled content top = %d, want %d", pt.Content.Y, pt.Title.Frame.Bottom()+BandGap)
	}
	if pt.Content.Bottom() != SlideHeight-Margin || pb.Content.Bottom() != SlideHeight-Margin {
		t.Fatalf("content should end at the bottom margin")
	}
}

func TestTableNormalizesRows(t *testing.T) {
	s, err := deck.NewTableSlide("T", []string{"a", "b", "c"}, [][]string{
		{"1"},
		{"1", "2", "3"},
		{"1", "2", "3", "4", "5"},
		{},
	})
	if err != nil {
		t.Fatalf("NewTableSlide() error = %v", err)
	}
	tbl := Resolve(s).Blocks[0].(TableBlock)

	for i, row := range tbl.Rows {
		if len(row) != 3 {
			t.Fatalf("row %d has %d cells, want 3", i, len(row))
		}
	}
	if tbl.Rows[0][1].Text != "" || tbl.Rows[2][2].Text != "3" {
		t.Fatalf("padding/truncation wrong: %v", tbl.Rows)
	}

	var w, h int64
	for _, c := range tbl.ColWidths {
		w += c
	}
	for _, r := range tbl.RowHeights {
		h += r
	}
	if w != tbl.Frame.W || h != tbl.Frame.H {
		t.Fatalf("widths sum %d (frame %d), heights sum %d (frame %d)", w, tbl.Frame.W, h, tbl.Frame.H)
	}
	if len(tbl.RowHeights) != len(tbl.Rows)+1 {
		t.Fatalf("len(RowHeights) = %d, want %d", len(tbl.RowHeights), len(tbl.Rows)+1)
	}
	if !tbl.Header[0].Bold || tbl.Rows[0][0].Bold {
		t.Fatalf("header cells should be bold and body cells not")
	}
}

func TestSplitHalves(t *testing.T) {
	tests := []struct {
		name   string
		region Rect
	}{
		{name: "even", region: Rect{X: 10, Y: 0, W: 100, H: 50}},
		{name: "odd", region: Rect{X: 10, Y: 0, W: 101, H: 50}},
		{name: "content", region: contentRegion(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := SplitHalves(tt.region)
			if h[0].Overlaps(h[1]) {
				t.Fatalf("halves overlap: %+v", h)
			}
			if h[0].X != tt.region.X || h[1].Right() != tt.region.Right() || h[0].Right() != h[1].X {
				t.Fatalf("halves %+v do not tile %+v", h, tt.region)
			}
			if d := h[1].W - h[0].W; d < 0 || d > 1 {
				t.Fatalf("half widths %d and %d differ by more than rounding", h[0].W, h[1].W)
			}
		})
	}
}

func TestResolveSplit(t *testing.T) {
	left, _ := deck.NewBulletContent(deck.Bullet("left"))
	right, _ := deck.NewImageContent("https://example.com/a.png", "chart")
	s, err := deck.NewSplitSlide("Compare", deck.LeftRight, left, right)
	if err != nil {
		t.Fatalf("NewSplitSlide() error = %v", err)
	}
	p := Resolve(s)

	if len(p.Sections) != 2 || len(p.Blocks) != 2 {
		t.Fatalf("sections=%d blocks=%d, want 2/2", len(p.Sections), len(p.Blocks))
	}
	if p.Sections[0].W != p.Sections[1].W {
		t.Fatalf("section widths %d and %d differ", p.Sections[0].W, p.Sections[1].W)
	}
	if p.Sections[0].X != p.Content.X || p.Sections[1].Right() != p.Content.Right() {
		t.Fatalf("sections do not span the content region")
	}
	for i, b := range p.Blocks {
		if !p.Sections[i].Contains(b.Bounds()) {
			t.Fatalf("block %d %+v escapes its section %+v", i, b.Bounds(), p.Sections[i])
		}
	}
	if p.Blocks[0].Bounds().Overlaps(p.Blocks[1].Bounds()) {
		t.Fatalf("section contents overlap")
	}
	if imgs := p.Images(); len(imgs) != 1 || imgs[0].Alt != "chart" {
		t.Fatalf("Images() = %+v, want the right-hand chart", imgs)
	}
}

func TestFit(t *testing.T) {
	frame := Rect{X: 100, Y: 200, W: 1000, H: 500}
	tests := []struct {
		name     string
		pxW, pxH int
		want     Rect
	}{
		{name: "wide", pxW: 400, pxH: 100, want: Rect{X: 100, Y: 325, W: 1000, H: 250}},
		{name: "tall", pxW: 100, pxH: 200, want: Rect{X: 475, Y: 200, W: 250, H: 500}},
		{name: "exact", pxW: 2, pxH: 1, want: frame},
		{name: "unknown", pxW: 0, pxH: 0, want: frame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(frame, tt.pxW, tt.pxH)
			if got != tt.want {
				t.Fatalf("Fit() = %+v, want %+v", got, tt.want)
			}
			if !frame.Contains(got) {
				t.Fatalf("Fit() = %+v escapes frame", got)
			}
		})
	}
}
