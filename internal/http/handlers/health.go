package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Queue reports how many jobs are queued or running.
func (a *App) Queue(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]int{"load": a.Generator.Load()})
}
