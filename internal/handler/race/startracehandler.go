package race

import (
	"net/http"

	"github.com/neboloop/wikirace/internal/httputil"
	"github.com/neboloop/wikirace/internal/svc"
	"github.com/neboloop/wikirace/internal/types"
)

// StartRaceHandler opens the agent's browser and starts the race. It
// returns once the agent is on the start page.
func StartRaceHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.StartRaceRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if err := svcCtx.Game.Start(r.Context(), req.Start, req.Target); err != nil {
			writeError(w, err)
			return
		}

		snap, err := svcCtx.Game.Snapshot(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.OkJSON(w, &types.RaceResponse{Race: types.NewRaceView(snap)})
	}
}
