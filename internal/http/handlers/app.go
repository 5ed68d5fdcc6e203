// Package handlers exposes the generator over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"dreambot/internal/domain"
	"dreambot/internal/events"
	"dreambot/internal/infra"
	"dreambot/internal/infra/geoip"
	"dreambot/pkg/zip"
)

// Generator is the part of the generator service the handlers use.
type Generator interface {
	Generate(ctx context.Context, req domain.RawRequest) <-chan events.Event
	Archive(ctx context.Context, completed *domain.CompletedJob) ([]string, error)
	LookupJob(ctx context.Context, id string) (*domain.Job, error)
	Load() int
}

// StatsReader loads per-user statistics.
type StatsReader interface {
	GetStats(ctx context.Context, user string) (*domain.UserStats, error)
}

// ImageReader serves archived images by storage key.
type ImageReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

// BatchReader loads the images of an archived batch for download.
type BatchReader interface {
	BatchImages(ctx context.Context, id string) ([]zip.Asset, error)
}

type App struct {
	Generator Generator
	Stats     StatsReader
	Images    ImageReader
	Batches   BatchReader
	GeoIP     geoip.CountryResolver
	Logger    *infra.Logger
}

func NewApp(gen Generator, stats StatsReader, images ImageReader, batches BatchReader, geo geoip.CountryResolver, logger *infra.Logger) *App {
	return &App{
		Generator: gen,
		Stats:     stats,
		Images:    images,
		Batches:   batches,
		GeoIP:     geo,
		Logger:    infra.Component(logger, "http"),
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}
