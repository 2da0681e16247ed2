package wiki

import (
	"net/http"

	"github.com/neboloop/wikirace/internal/httputil"
	"github.com/neboloop/wikirace/internal/svc"
	"github.com/neboloop/wikirace/internal/types"
)

const maxSearchResults = 20

// SearchHandler autocompletes article titles for the topic pickers.
func SearchHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SearchRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.Limit <= 0 || req.Limit > maxSearchResults {
			req.Limit = 8
		}
		if req.Query == "" {
			httputil.OkJSON(w, &types.SearchResponse{Results: nil})
			return
		}

		results, err := svcCtx.Wiki.Search(r.Context(), req.Query, req.Limit)
		if err != nil {
			httputil.ErrorWithCode(w, http.StatusBadGateway, err.Error())
			return
		}
		httputil.OkJSON(w, &types.SearchResponse{Results: results})
	}
}
