package windshaft

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gaborage/go-tiledmap/tile"
)

const maxReasonLength = 512

// RendererError is returned when the renderer answers a tile request with a
// non-2xx status. Message is the renderer's own explanation when it sent one.
type RendererError struct {
	Coord      tile.Coord
	Format     tile.Format
	StatusCode int
	Message    string
}

func (e *RendererError) Error() string {
	return fmt.Sprintf("renderer returned %d for %s: %s", e.StatusCode, e.Coord.Path(e.Format), e.Message)
}

// IsRendererError reports whether err is a *RendererError and returns it.
func IsRendererError(err error) (*RendererError, bool) {
	var rerr *RendererError
	if errors.As(err, &rerr) {
		return rerr, true
	}
	return nil, false
}

// newRendererError extracts the reason from a {"errors": [...]} body and
// falls back to the raw body.
func newRendererError(coord tile.Coord, f tile.Format, status int, body []byte) *RendererError {
	var payload struct {
		Errors []string `json:"errors"`
		Error  string   `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case len(payload.Errors) > 0:
			msg = strings.Join(payload.Errors, "; ")
		case payload.Error != "":
			msg = payload.Error
		}
	}
	if len(msg) > maxReasonLength {
		msg = msg[:maxReasonLength] + "..."
	}
	return &RendererError{Coord: coord, Format: f, StatusCode: status, Message: msg}
}
