package pptx

import (
	"bytes"
	"fmt"

	ppt "github.com/Vantagics/GoPPT"
)

// SlideText is the visible text and presenter notes of one slide.
type SlideText struct {
	Text  string
	Notes string
}

// Inspect reads a package back with an independent PresentationML reader.
// Malformed input is an error, never a panic.
func Inspect(data []byte) ([]SlideText, error) {
	pres, err := ppt.ReadFrom(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read package: %w", err)
	}
	defer pres.Close()

	slides := pres.Slides()
	out := make([]SlideText, len(slides))
	for i, s := range slides {
		out[i] = SlideText{Text: s.ExtractText(), Notes: s.GetNotes()}
	}
	return out, nil
}
