package race

import (
	"errors"
	"net/http"

	"github.com/neboloop/wikirace/internal/game"
	"github.com/neboloop/wikirace/internal/httputil"
	"github.com/neboloop/wikirace/internal/logging"
	racepkg "github.com/neboloop/wikirace/internal/race"
)

// writeError maps race and session errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, racepkg.ErrInvalidState), errors.Is(err, game.ErrSetupInProgress):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, racepkg.ErrInvalidTopic):
		httputil.Error(w, err)
	case errors.Is(err, game.ErrClosed):
		httputil.ErrorWithCode(w, http.StatusServiceUnavailable, err.Error())
	default:
		logging.Errorf("[Race] %v", err)
		httputil.ErrorWithCode(w, http.StatusBadGateway, err.Error())
	}
}
