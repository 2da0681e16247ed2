package handler

import (
	"net/http"
	"time"

	"github.com/neboloop/wikirace/internal/httputil"
	"github.com/neboloop/wikirace/internal/svc"
	"github.com/neboloop/wikirace/internal/types"
)

func HealthCheckHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, &types.HealthResponse{
			Status:    "healthy",
			Version:   svc.Version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
