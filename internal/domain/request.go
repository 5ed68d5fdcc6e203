package domain

// Source identifies the front-end a request arrived from.
type Source string

const (
	SourceDiscord Source = "discord"
	SourceIRC     Source = "irc"
	SourceHTTP    Source = "http"
	SourceUnknown Source = "unknown"
)

// RawRequest is a generation request exactly as a front-end received it.
type RawRequest struct {
	User    string `json:"user"`
	Origin  string `json:"origin,omitempty"`
	Source  Source `json:"source"`
	Raw     string `json:"raw"`
	Dream   string `json:"dream,omitempty"`
	Comment string `json:"comment,omitempty"`
	Private bool   `json:"private"`
}

// IsDream reports whether the request carries a loose description that must be
// expanded into a command line before parsing.
func (r RawRequest) IsDream() bool {
	return r.Dream != ""
}

// Suggestion is what a prompt enhancer makes of a loose description.
type Suggestion struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Comment     string `json:"comment"`
}

// CommandLine renders the suggestion as a parser command line.
func (s Suggestion) CommandLine() string {
	if s.AspectRatio == "" {
		return s.Prompt
	}
	return s.Prompt + " --ar " + s.AspectRatio
}
