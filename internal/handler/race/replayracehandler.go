package race

import (
	"net/http"

	"github.com/neboloop/wikirace/internal/httputil"
	"github.com/neboloop/wikirace/internal/svc"
	"github.com/neboloop/wikirace/internal/types"
)

func ReplayRaceHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svcCtx.Game.Replay(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.OkJSON(w, &types.RaceResponse{Race: types.NewRaceView(snap)})
	}
}
