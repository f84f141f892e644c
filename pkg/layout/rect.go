package layout

// Rect is an axis-aligned box in EMU, origin at the slide's top-left corner.
type Rect struct {
	X, Y, W, H int64
}

func (r Rect) Right() int64  { return r.X + r.W }
func (r Rect) Bottom() int64 { return r.Y + r.H }

// Overlaps reports whether r and o share any area. Touching edges do not count.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Bottom() && o.Y < r.Bottom()
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// Fit scales a pxW x pxH image to the largest rectangle inside frame that
// keeps its aspect ratio, centred in frame. Unknown dimensions fill frame.
func Fit(frame Rect, pxW, pxH int) Rect {
	if pxW <= 0 || pxH <= 0 || frame.W <= 0 || frame.H <= 0 {
		return frame
	}
	w, h := int64(pxW), int64(pxH)

	out := frame
	if frame.W*h <= frame.H*w {
		out.H = frame.W * h / w
		out.Y = frame.Y + (frame.H-out.H)/2
	} else {
		out.W = frame.H * w / h
		out.X = frame.X + (frame.W-out.W)/2
	}
	return out
}

// splitEven divides total into n parts; the last part absorbs the remainder
// so the parts always sum to total.
func splitEven(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	parts := make([]int64, n)
	each := total / int64(n)
	for i := range parts {
		parts[i] = each
	}
	parts[n-1] = total - each*int64(n-1)
	return parts
}
