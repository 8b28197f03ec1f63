package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/halcyonretail/storefront-sync/api/responses"
	"github.com/halcyonretail/storefront-sync/pkg/config"
	pkgerrors "github.com/halcyonretail/storefront-sync/pkg/errors"
	"github.com/halcyonretail/storefront-sync/pkg/logger"
	pkgredis "github.com/halcyonretail/storefront-sync/pkg/redis"
)

const envHeader = "X-Storefront-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the optional redis dependency. The remote store
// gateway has no ping surface; its availability shows up per-request.
func HealthReady(cfg *config.Config, logg *logger.Logger, redisP pkgredis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		if redisP != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisP.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
