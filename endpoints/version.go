package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
)

const notSet = "not-set"

// buildInfo identifies the binary. Both values are injected with -ldflags at build time.
type buildInfo struct {
	Version  string `json:"version"`
	Revision string `json:"revision"`
}

// NewVersionEndpoint serves the release tag and the commit the binary was built from. The body
// never changes, so it is rendered once.
func NewVersionEndpoint(version, revision string) http.HandlerFunc {
	body, err := json.Marshal(buildInfo{
		Version:  orNotSet(version),
		Revision: orNotSet(revision),
	})
	if err != nil {
		glog.Fatalf("Failed to render the /version response: %v", err)
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

func orNotSet(value string) string {
	if value == "" {
		return notSet
	}
	return value
}
