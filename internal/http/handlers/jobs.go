package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"dreambot/pkg/zip"
)

// Job returns the parameters an archived batch was generated with.
func (a *App) Job(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := a.Generator.LookupJob(r.Context(), id)
	if err != nil {
		code, status, message := classify(err)
		if status == http.StatusInternalServerError {
			a.Logger.Error().Err(err).Str("batch_id", id).Msg("lookup job")
		}
		a.error(w, status, code, message)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"id": id, "job": job})
}

// JobImages streams every image of an archived batch as one zip file.
func (a *App) JobImages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	assets, err := a.Batches.BatchImages(r.Context(), id)
	if err != nil {
		code, status, message := classify(err)
		if status == http.StatusInternalServerError {
			a.Logger.Error().Err(err).Str("batch_id", id).Msg("load batch images")
			message = "failed to load images"
		}
		a.error(w, status, code, message)
		return
	}
	data, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Str("batch_id", id).Msg("zip batch images")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".zip"))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// UserStats returns a user's totals.
func (a *App) UserStats(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(chi.URLParam(r, "user"))
	stats, err := a.Stats.GetStats(r.Context(), user)
	if err != nil {
		code, status, message := classify(err)
		if status == http.StatusInternalServerError {
			a.Logger.Error().Err(err).Str("user", user).Msg("load user stats")
			message = "failed to load stats"
		}
		a.error(w, status, code, message)
		return
	}
	a.json(w, http.StatusOK, stats)
}

// Image serves an archived image by its storage key.
func (a *App) Image(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	data, err := a.Images.Read(r.Context(), key)
	if err != nil {
		code, status, message := classify(err)
		a.error(w, status, code, message)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
