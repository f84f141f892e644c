package api

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pptxd/pkg/artifact"
	"pptxd/pkg/pptx"
)

// handleDownload redirects to a presigned URL for unsealed artifacts on the
// s3 backend. Everything else is opened and streamed here.
func (a *API) handleDownload(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("artifact storage is not configured"))
		return
	}
	id := chi.URLParam(r, "id")

	if a.store.Backend() == "s3" {
		rec, err := a.store.Lookup(r.Context(), id)
		if err != nil {
			a.logDownloadFailure(id, err)
			respondFailure(w, err)
			return
		}
		if !rec.Sealed {
			url, err := a.store.ResolveHandle(r.Context(), id)
			if err != nil {
				a.logDownloadFailure(id, err)
				respondFailure(w, err)
				return
			}
			http.Redirect(w, r, url, http.StatusTemporaryRedirect)
			return
		}
	}

	data, rec, err := a.store.Get(r.Context(), id)
	if err != nil {
		a.logDownloadFailure(id, err)
		respondFailure(w, err)
		return
	}
	w.Header().Set("Content-Type", pptx.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) logDownloadFailure(id string, err error) {
	if errors.Is(err, artifact.ErrNotFound) || errors.Is(err, artifact.ErrExpired) {
		a.log.Debug().Err(err).Str("artifact_id", id).Msg("download")
		return
	}
	a.log.Error().Err(err).Str("artifact_id", id).Msg("download")
}
