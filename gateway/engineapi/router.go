package engineapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/erisprotocol/ve3engine/gateway/middleware"
	"github.com/erisprotocol/ve3engine/native/coordinator"
)

// Router builds the ve3 engine HTTP surface: an unauthenticated query group
// (rate-limited, read-only) and a command group split by required
// capability scope, mirroring the Coordinator's own role gating one level
// up so a caller lacking scope is rejected by the HTTP layer before ever
// reaching the Coordinator's capability oracle.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	}))

	if s.Observability != nil {
		r.Use(s.Observability.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(v1 chi.Router) {
		if s.RateLimiter != nil {
			v1.Use(s.RateLimiter.Middleware("engine"))
		}

		v1.Group(func(q chi.Router) {
			q.Get("/positions/{tokenID}", s.handleGetPosition)
			q.Get("/owners/{address}/positions", s.handleListOwnerPositions)
			q.Get("/owners/{address}/curve", s.handleGetVoterCurve)
			q.Get("/gauges/{gaugeID}", s.handleGetGauge)
			q.Get("/gauges/{gaugeID}/distributions/{period}", s.handleGetDistribution)
			q.Get("/stake/assets/{assetID}", s.handleGetStakeAsset)
		})

		v1.Group(func(c chi.Router) {
			if s.Auth != nil {
				c.Use(s.Auth.Middleware())
			}
			c.Post("/locks", s.handleCreateLock)
			c.Post("/gauges/{gaugeID}/votes", s.handleSetVotes)
			c.Post("/stake/assets/{assetID}/stake", s.handleStake)
			c.Post("/stake/assets/{assetID}/unstake", s.handleUnstake)
			c.Post("/stake/assets/{assetID}/claim", s.handleClaimRewards)
			c.Post("/stake/claims", s.handleClaimRewardsBatch)
			c.Post("/escrow/{tokenID}/withdraw", s.handleWithdraw)
			c.Post("/escrow/{tokenID}/transfer", s.handleTransfer)
		})

		v1.Group(func(gc chi.Router) {
			if s.Auth != nil {
				gc.Use(s.Auth.Middleware(string(coordinator.RoleGaugeController)))
			}
			gc.Post("/gauges/{gaugeID}/distribution", s.handleSetDistribution)
		})

		v1.Group(func(bwc chi.Router) {
			if s.Auth != nil {
				bwc.Use(s.Auth.Middleware(string(coordinator.RoleBribeWhitelistController)))
			}
			bwc.Post("/gauges/{gaugeID}/whitelist", s.handleSetGaugeWhitelist)
		})

		v1.Group(func(vg chi.Router) {
			if s.Auth != nil {
				vg.Use(s.Auth.Middleware(string(coordinator.RoleVEGuardian)))
			}
			vg.Post("/escrow/decommission", s.handleSetDecommissioned)
		})

		v1.Group(func(awc chi.Router) {
			if s.Auth != nil {
				awc.Use(s.Auth.Middleware(string(coordinator.RoleAssetWhitelistController)))
			}
			awc.Post("/stake/assets/{assetID}", s.handleRegisterStakeAsset)
			awc.Delete("/stake/assets/{assetID}", s.handleDelistStakeAsset)
		})

		v1.Group(func(fc chi.Router) {
			if s.Auth != nil {
				fc.Use(s.Auth.Middleware(string(coordinator.RoleFeeCollector)))
			}
			fc.Post("/stake/assets/{assetID}/distribute-take", s.handleDistributeTake)
		})
	})

	if s.Observability != nil {
		r.Handle("/metrics", s.Observability.MetricsHandler())
	}

	return r
}
