package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"pptxd/pkg/pptx"
)

// headerDiagnostics repeats once per image URL replaced by the placeholder.
const headerDiagnostics = "X-Pptxd-Placeholders"

// handleGenerate builds the deck and streams it back; nothing is stored.
func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	d, err := decodeDeck(w, r, a.config.MaxBodyBytes)
	if err != nil {
		respondFailure(w, err)
		return
	}

	out, err := a.builder.Build(r.Context(), d)
	if err != nil {
		a.log.Error().Err(err).Str("filename", d.Filename()).Msg("build deck")
		respondFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", pptx.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	seen := map[string]bool{}
	for _, d := range out.Diagnostics {
		if !seen[d.URL] {
			seen[d.URL] = true
			w.Header().Add(headerDiagnostics, d.URL)
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

// handlePublish builds the deck, stores it and returns the artifact record.
func (a *API) handlePublish(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("artifact storage is not configured"))
		return
	}
	d, err := decodeDeck(w, r, a.config.MaxBodyBytes)
	if err != nil {
		respondFailure(w, err)
		return
	}

	rec, err := a.builder.Publish(r.Context(), d)
	if err != nil {
		a.log.Error().Err(err).Str("filename", d.Filename()).Msg("publish deck")
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}
