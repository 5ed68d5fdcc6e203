package comfy

import "fmt"

// Dialect names the endpoints of one backend flavour.
type Dialect struct {
	Name          string
	SubmitPath    string
	SubscribePath string
	StatusPath    string
	FetchPath     string
	// JobField is the request body key holding the workflow graph.
	JobField string
}

var (
	DefaultDialect = Dialect{
		Name:          "default",
		SubmitPath:    "/submit",
		SubscribePath: "/subscribe",
		StatusPath:    "/status/",
		FetchPath:     "/fetch",
		JobField:      "job",
	}
	ComfyUIDialect = Dialect{
		Name:          "comfyui",
		SubmitPath:    "/prompt",
		SubscribePath: "/ws",
		StatusPath:    "/history/",
		FetchPath:     "/view",
		JobField:      "prompt",
	}
)

// DialectByName looks up a dialect. The empty name selects DefaultDialect.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "", DefaultDialect.Name:
		return DefaultDialect, nil
	case ComfyUIDialect.Name:
		return ComfyUIDialect, nil
	default:
		return Dialect{}, fmt.Errorf("comfy: unknown dialect %q", name)
	}
}
