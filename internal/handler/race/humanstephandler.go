package race

import (
	"net/http"

	"github.com/neboloop/wikirace/internal/httputil"
	"github.com/neboloop/wikirace/internal/svc"
	"github.com/neboloop/wikirace/internal/types"
)

// HumanStepHandler records the page the human just opened.
func HumanStepHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.HumanStepRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.Locator == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "locator is required")
			return
		}

		snap, err := svcCtx.Game.HumanStep(r.Context(), req.Locator, req.Label)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.OkJSON(w, &types.RaceResponse{Race: types.NewRaceView(snap)})
	}
}
