package engineapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/erisprotocol/ve3engine/gateway/middleware"
	"github.com/erisprotocol/ve3engine/native/coordinator"
	"github.com/erisprotocol/ve3engine/native/gauge"
	"github.com/erisprotocol/ve3engine/native/stake"
	"github.com/erisprotocol/ve3engine/native/voteescrow"
)

// Server holds everything the engine HTTP surface needs to answer a query
// or dispatch a command: the Coordinator for writes, and the raw stores for
// reads that have no Coordinator-level accessor (owner token listings,
// gauge/stake lookups by id).
type Server struct {
	Coordinator *coordinator.Coordinator
	Positions   voteescrow.PositionStore
	Gauges      gauge.Store
	Stakes      stake.Store
	RewardSink  stake.RewardSink

	Auth          *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability

	Logger *log.Logger
}

func New(cfg Server) *Server {
	s := cfg
	if s.Logger == nil {
		s.Logger = log.Default()
	}
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorDTO{Error: err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
