package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"dreambot/internal/domain"
	"dreambot/internal/events"
	"dreambot/internal/infra/geoip"
	"dreambot/internal/middleware"
)

type dreamRequest struct {
	User    string `json:"user"`
	Source  string `json:"source"`
	Prompt  string `json:"prompt"`
	Dream   string `json:"dream"`
	Private bool   `json:"private"`
}

// eventLine is one NDJSON line of a generation stream.
type eventLine struct {
	Event    string             `json:"event"`
	Request  *domain.RawRequest `json:"request,omitempty"`
	Job      *domain.Job        `json:"job,omitempty"`
	Position *uint              `json:"position,omitempty"`
	Percent  *uint              `json:"percent,omitempty"`
	ID       string             `json:"id,omitempty"`
	URLs     []string           `json:"urls,omitempty"`
	Code     string             `json:"code,omitempty"`
	Message  string             `json:"message,omitempty"`
}

func parseSource(s string) domain.Source {
	switch src := domain.Source(strings.ToLower(strings.TrimSpace(s))); src {
	case domain.SourceDiscord, domain.SourceIRC, domain.SourceHTTP:
		return src
	case "":
		return domain.SourceHTTP
	default:
		return domain.SourceUnknown
	}
}

// CreateDream runs a generation request and streams its events as NDJSON
// until the job completes or fails.
func (a *App) CreateDream(w http.ResponseWriter, r *http.Request) {
	var req dreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.User = strings.TrimSpace(req.User)
	if req.User == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "user required")
		return
	}
	prompt, dream := strings.TrimSpace(req.Prompt), strings.TrimSpace(req.Dream)
	if (prompt == "") == (dream == "") {
		a.error(w, http.StatusBadRequest, "bad_request", "exactly one of prompt or dream is required")
		return
	}

	raw := domain.RawRequest{
		User:    req.User,
		Origin:  geoip.Origin(a.GeoIP, middleware.ClientIP(r)),
		Source:  parseSource(req.Source),
		Raw:     prompt,
		Dream:   dream,
		Private: req.Private,
	}

	log := zerolog.Ctx(r.Context())
	if log.GetLevel() == zerolog.Disabled {
		log = a.Logger
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)

	for ev := range a.Generator.Generate(r.Context(), raw) {
		line := a.eventLine(r, ev)
		if err := enc.Encode(line); err != nil {
			log.Debug().Err(err).Msg("client went away")
			return
		}
		_ = rc.Flush()
		if line.Event == "failed" {
			log.Info().Str("user", raw.User).Str("code", line.Code).Msg("generation failed")
		}
	}
}

func (a *App) eventLine(r *http.Request, ev events.Event) eventLine {
	line := eventLine{Event: events.Kind(ev)}
	switch e := ev.(type) {
	case events.PromptEnhanced:
		line.Request = &e.Request
	case events.Validated:
		line.Job = &e.Job
	case events.Queued:
		line.Position = &e.Position
	case events.Progress:
		line.Percent = &e.Percent
	case events.Completed:
		line.ID = e.Result.ID.String()
		line.Job = &e.Result.Job
		urls, err := a.Generator.Archive(r.Context(), e.Result)
		if err != nil {
			a.Logger.Error().Err(err).Str("batch_id", line.ID).Msg("archive batch")
			return eventLine{Event: "failed", ID: line.ID, Code: "archive_failed", Message: "failed to store images"}
		}
		line.URLs = urls
	case events.Failed:
		line.Code, _, line.Message = classify(e.Err)
	}
	return line
}
