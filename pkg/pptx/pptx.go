// Package pptx serializes resolved pages into a PresentationML package.
//
// The archive is built in memory and returned only once every part has been
// written; any failure discards it and reports a *SerializationError.
package pptx

import (
	"bytes"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"

	"pptxd/infra/branding"
	"pptxd/pkg/assets"
	"pptxd/pkg/layout"
	"pptxd/pkg/render"
)

// ContentType is the MIME type of a generated package.
const ContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

// SerializationError reports a part that could not be written.
type SerializationError struct {
	Part string
	Err  error
}

func (e *SerializationError) Error() string {
	if e.Part == "" {
		return fmt.Sprintf("serialize presentation: %v", e.Err)
	}
	return fmt.Sprintf("serialize %s: %v", e.Part, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// Slide is one resolved page plus its presenter notes.
type Slide struct {
	Page  layout.Page
	Notes []string
}

// Document is everything needed to write one package.
type Document struct {
	Title  string
	Slides []Slide
	// Assets maps image URLs referenced by the pages to their fetched bytes.
	Assets  map[string]assets.Asset
	Created time.Time
}

// Assembler writes documents. It holds no per-build state and is safe for
// concurrent use.
type Assembler struct {
	engine *render.Engine
	theme  branding.Theme
}

// New parses the part templates once.
func New(theme branding.Theme) (*Assembler, error) {
	engine, err := render.New()
	if err != nil {
		return nil, err
	}
	return &Assembler{engine: engine, theme: theme}, nil
}

// Assemble returns the complete .pptx archive for doc.
func (a *Assembler) Assemble(doc Document) ([]byte, error) {
	if len(doc.Slides) == 0 {
		return nil, &SerializationError{Err: fmt.Errorf("document has no slides")}
	}
	if doc.Created.IsZero() {
		doc.Created = time.Now()
	}
	doc.Created = doc.Created.UTC().Truncate(time.Second)

	pkg, err := plan(doc, a.theme)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range pkg.parts {
		if err := a.writePart(zw, p, doc.Created); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, &SerializationError{Err: fmt.Errorf("close archive: %w", err)}
	}
	return buf.Bytes(), nil
}

func (a *Assembler) writePart(zw *zip.Writer, p part, modified time.Time) error {
	method := zip.Deflate
	if p.raw != nil {
		method = zip.Store
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: method, Modified: modified})
	if err != nil {
		return &SerializationError{Part: p.name, Err: err}
	}
	if p.raw != nil {
		if _, err := w.Write(p.raw); err != nil {
			return &SerializationError{Part: p.name, Err: err}
		}
		return nil
	}
	if err := a.engine.Execute(w, p.template, p.data); err != nil {
		return &SerializationError{Part: p.name, Err: err}
	}
	return nil
}
