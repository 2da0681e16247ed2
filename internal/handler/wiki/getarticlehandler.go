package wiki

import (
	"errors"
	"net/http"

	"github.com/neboloop/wikirace/internal/httputil"
	"github.com/neboloop/wikirace/internal/svc"
	"github.com/neboloop/wikirace/internal/types"
	wikipkg "github.com/neboloop/wikirace/internal/wiki"
)

// GetArticleHandler returns an article's title and outbound article links
// for the human's view.
func GetArticleHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GetArticleRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.Locator == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "locator is required")
			return
		}

		article, err := svcCtx.Wiki.Article(r.Context(), req.Locator)
		switch {
		case errors.Is(err, wikipkg.ErrNotFound):
			httputil.NotFound(w, "article not found")
			return
		case err != nil:
			httputil.ErrorWithCode(w, http.StatusBadGateway, err.Error())
			return
		}

		httputil.OkJSON(w, &types.GetArticleResponse{
			Title:   article.Title,
			Locator: article.Locator,
			Links:   article.Links,
		})
	}
}
