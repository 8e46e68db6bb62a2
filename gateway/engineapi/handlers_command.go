package engineapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/erisprotocol/ve3engine/native/gauge"
	"github.com/erisprotocol/ve3engine/native/stake"
	"github.com/erisprotocol/ve3engine/native/voteescrow"
)

// Every command handler reads the acting principal from the request body
// rather than the bearer token's subject claim: the JWT middleware proves
// the caller holds a valid credential and (via required scopes) that it is
// entitled to call the route at all, but which address dispatches as owner
// or caller is a property of the message itself, same as a submitted
// transaction names its own sender.

type createLockRequest struct {
	Owner      string `json:"owner"`
	AssetKind  string `json:"asset_kind"`
	AssetDenom string `json:"asset_denom"`
	Amount     string `json:"amount"`
	AtPeriod   uint64 `json:"at_period"`
	DtPeriods  uint64 `json:"dt_periods"`
	Permanent  bool   `json:"permanent"`
}

func (s *Server) handleCreateLock(w http.ResponseWriter, r *http.Request) {
	var req createLockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := addrFromHex(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := bigFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	asset := voteescrow.AssetInfo{Kind: req.AssetKind, Denom: req.AssetDenom}
	pos, err := s.Coordinator.CreateLock(owner, asset, amount, req.AtPeriod, req.DtPeriods, req.Permanent)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPositionDTO(pos))
}

type setVotesRequest struct {
	Voter    string                  `json:"voter"`
	AtPeriod uint64                  `json:"at_period"`
	Entries  []gauge.AllocationEntry `json:"entries"`
}

func (s *Server) handleSetVotes(w http.ResponseWriter, r *http.Request) {
	gaugeID := chi.URLParam(r, "gaugeID")
	var req setVotesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	voter, err := addrFromHex(req.Voter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Coordinator.SetVotes(gaugeID, voter, req.AtPeriod, req.Entries); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type setDistributionRequest struct {
	callerRequest
	Period uint64 `json:"period"`
}

func (s *Server) handleSetDistribution(w http.ResponseWriter, r *http.Request) {
	gaugeID := chi.URLParam(r, "gaugeID")
	var req setDistributionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := addrFromHex(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := s.Coordinator.SetDistribution(caller, gaugeID, req.Period)
	if err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	writeJSON(w, http.StatusOK, toDistributionDTO(d))
}

type setGaugeWhitelistRequest struct {
	callerRequest
	Assets []string `json:"assets"`
}

func (s *Server) handleSetGaugeWhitelist(w http.ResponseWriter, r *http.Request) {
	gaugeID := chi.URLParam(r, "gaugeID")
	var req setGaugeWhitelistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := addrFromHex(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Coordinator.SetGaugeWhitelist(caller, gaugeID, req.Assets); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setDecommissionedRequest struct {
	callerRequest
	Decommissioned bool `json:"decommissioned"`
}

func (s *Server) handleSetDecommissioned(w http.ResponseWriter, r *http.Request) {
	var req setDecommissionedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := addrFromHex(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Coordinator.SetDecommissioned(caller, req.Decommissioned); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type stakeRequest struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	var req stakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := addrFromHex(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := bigFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	shares, err := s.Coordinator.Stake(owner, assetID, amount, nowUnix())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shares": bigToString(shares)})
}

type unstakeRequest struct {
	Owner  string `json:"owner"`
	Shares string `json:"shares"`
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	var req unstakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := addrFromHex(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	shares, err := bigFromString(req.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.Coordinator.Unstake(owner, assetID, shares, nowUnix())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": bigToString(amount)})
}

type registerStakeAssetRequest struct {
	callerRequest
	YearlyTakeRateWad string `json:"yearly_take_rate_wad"`
}

func (s *Server) handleRegisterStakeAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	var req registerStakeAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := addrFromHex(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rate, err := bigFromString(req.YearlyTakeRateWad)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Coordinator.RegisterStakeAsset(caller, assetID, rate); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDelistStakeAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	var req callerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := addrFromHex(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Coordinator.DelistStakeAsset(caller, assetID); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDistributeTake(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	var req callerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := addrFromHex(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.Coordinator.DistributeTake(caller, assetID, nowUnix(), s.RewardSink)
	if err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"distributed": bigToString(amount)})
}

type claimRewardsRequest struct {
	Owner string `json:"owner"`
}

func (s *Server) handleClaimRewards(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	var req claimRewardsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	owner, err := addrFromHex(req.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.Coordinator.ClaimRewards(owner, assetID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"claimed": bigToString(amount)})
}

type claimRewardsBatchRequest struct {
	Claims []struct {
		Owner   string `json:"owner"`
		AssetID string `json:"asset_id"`
	} `json:"claims"`
}

type claimRewardsBatchResultDTO struct {
	Owner   string `json:"owner"`
	AssetID string `json:"asset_id"`
	Claimed string `json:"claimed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleClaimRewardsBatch claims rewards across several assets (and
// possibly several owners, e.g. an operator settling a batch on users'
// behalf) in one request. A sink failure on one entry does not fail the
// rest of the batch; each entry's own success or error is reported in its
// own response element.
func (s *Server) handleClaimRewardsBatch(w http.ResponseWriter, r *http.Request) {
	var req claimRewardsBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	claims := make([]stake.ClaimRequest, 0, len(req.Claims))
	for _, c := range req.Claims {
		owner, err := addrFromHex(c.Owner)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		claims = append(claims, stake.ClaimRequest{Owner: owner, AssetID: c.AssetID})
	}

	results := s.Coordinator.ClaimRewardsBatch(claims)
	out := make([]claimRewardsBatchResultDTO, len(results))
	for i, res := range results {
		dto := claimRewardsBatchResultDTO{Owner: addrToHex(res.Owner), AssetID: res.AssetID}
		if res.Err != nil {
			dto.Error = res.Err.Error()
		} else {
			dto.Claimed = bigToString(res.Amount)
		}
		out[i] = dto
	}
	writeJSON(w, http.StatusOK, out)
}

type withdrawRequest struct {
	Caller   string `json:"caller"`
	AtPeriod uint64 `json:"at_period"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := addrFromHex(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := s.Coordinator.Withdraw(caller, tokenID, req.AtPeriod)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": bigToString(amount)})
}

type transferRequest struct {
	Caller   string `json:"caller"`
	AtPeriod uint64 `json:"at_period"`
	To       string `json:"to"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "tokenID")
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := addrFromHex(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := addrFromHex(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.Coordinator.Transfer(caller, tokenID, req.AtPeriod, to); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nowUnix() uint64 {
	return uint64(time.Now().Unix())
}
