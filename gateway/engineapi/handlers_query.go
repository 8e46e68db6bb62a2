package engineapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleGetPosition answers GET /v1/positions/{tokenID}.
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")
	pos, ok, err := s.Coordinator.Escrow.Get(tokenID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("position"))
		return
	}
	writeJSON(w, http.StatusOK, toPositionDTO(pos))
}

// handleListOwnerPositions answers GET /v1/owners/{address}/positions.
func (s *Server) handleListOwnerPositions(w http.ResponseWriter, r *http.Request) {
	owner, err := addrFromHex(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ids, err := s.Positions.TokensByOwner(owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]positionDTO, 0, len(ids))
	for _, id := range ids {
		pos, ok, err := s.Coordinator.Escrow.Get(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if ok {
			out = append(out, toPositionDTO(pos))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetVoterCurve answers GET /v1/owners/{address}/curve?period=N.
func (s *Server) handleGetVoterCurve(w http.ResponseWriter, r *http.Request) {
	owner, err := addrFromHex(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	atPeriod, err := periodParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pt, err := s.Coordinator.Escrow.VoterCurve(owner, atPeriod)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toPointDTO(pt))
}

// handleGetGauge answers GET /v1/gauges/{gaugeID}.
func (s *Server) handleGetGauge(w http.ResponseWriter, r *http.Request) {
	g, ok, err := s.Gauges.GetGauge(chi.URLParam(r, "gaugeID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("gauge"))
		return
	}
	writeJSON(w, http.StatusOK, toGaugeDTO(g))
}

// handleGetDistribution answers GET /v1/gauges/{gaugeID}/distributions/{period}.
func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	gaugeID := chi.URLParam(r, "gaugeID")
	p, err := strconv.ParseUint(chi.URLParam(r, "period"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, ok, err := s.Gauges.GetDistribution(gaugeID, p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("distribution"))
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(d))
}

// handleGetStakeAsset answers GET /v1/stake/assets/{assetID}.
func (s *Server) handleGetStakeAsset(w http.ResponseWriter, r *http.Request) {
	a, ok, err := s.Stakes.GetAsset(chi.URLParam(r, "assetID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errNotFound("stake asset"))
		return
	}
	writeJSON(w, http.StatusOK, toStakeAssetDTO(a))
}

func periodParam(r *http.Request) (uint64, error) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return 0, errMissingQueryParam("period")
	}
	return strconv.ParseUint(raw, 10, 64)
}
