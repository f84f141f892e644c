package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"pptxd/pkg/artifact"
	"pptxd/pkg/deck"
	"pptxd/pkg/pptx"
)

// decodeDeck reads a JSON deck, or YAML when the request says so.
func decodeDeck(w http.ResponseWriter, r *http.Request, limit int64) (*deck.Deck, error) {
	if r.Body == nil {
		return nil, fmt.Errorf("%w: request body required", deck.ErrMalformed)
	}
	defer r.Body.Close()
	body := io.Reader(http.MaxBytesReader(w, r.Body, limit))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasSuffix(mediaType, "yaml") {
		return deck.DecodeYAML(body)
	}
	return deck.Decode(body)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, status, map[string]any{"error": err.Error()})
}

// respondFailure maps pipeline and storage errors onto status codes.
func respondFailure(w http.ResponseWriter, err error) {
	var (
		structural *deck.StructuralError
		serialize  *pptx.SerializationError
		unavail    *artifact.UnavailableError
		tooLarge   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &structural):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      structural.Error(),
			"constraint": structural.Constraint,
			"path":       structural.Path,
		})
	case errors.As(err, &tooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err)
	case errors.As(err, &serialize):
		respondError(w, http.StatusInternalServerError, err)
	case errors.Is(err, artifact.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, artifact.ErrExpired):
		respondError(w, http.StatusGone, err)
	case errors.As(err, &unavail):
		respondError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, deck.ErrMalformed):
		respondError(w, http.StatusBadRequest, err)
	default:
		respondError(w, http.StatusInternalServerError, err)
	}
}
