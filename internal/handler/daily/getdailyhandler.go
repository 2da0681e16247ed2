package daily

import (
	"net/http"

	"github.com/neboloop/wikirace/internal/httputil"
	"github.com/neboloop/wikirace/internal/svc"
	"github.com/neboloop/wikirace/internal/types"
)

func GetDailyHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svcCtx.Daily.Current(r.Context())
		if err != nil {
			httputil.ErrorWithCode(w, http.StatusBadGateway, err.Error())
			return
		}
		httputil.OkJSON(w, &types.DailyResponse{Challenge: c})
	}
}
