package engineapi

import (
	"github.com/erisprotocol/ve3engine/native/gauge"
	"github.com/erisprotocol/ve3engine/native/period"
	"github.com/erisprotocol/ve3engine/native/stake"
	"github.com/erisprotocol/ve3engine/native/voteescrow"
)

type positionDTO struct {
	TokenID          string   `json:"token_id"`
	Owner            string   `json:"owner"`
	AssetKind        string   `json:"asset_kind"`
	AssetDenom       string   `json:"asset_denom"`
	Amount           string   `json:"amount"`
	UnderlyingAmount string   `json:"underlying_amount"`
	StartPeriod      uint64   `json:"start_period"`
	Permanent        bool     `json:"permanent"`
	EndPeriod        uint64   `json:"end_period,omitempty"`
	LastExtendPeriod uint64   `json:"last_extend_period"`
	Approvals        []string `json:"approvals,omitempty"`
}

func toPositionDTO(p *voteescrow.Position) positionDTO {
	approvals := make([]string, 0, len(p.Approvals))
	for a := range p.Approvals {
		approvals = append(approvals, addrToHex(a))
	}
	return positionDTO{
		TokenID:          p.TokenID,
		Owner:            addrToHex(p.Owner),
		AssetKind:        p.Asset.Kind,
		AssetDenom:       p.Asset.Denom,
		Amount:           bigToString(p.Amount),
		UnderlyingAmount: bigToString(p.UnderlyingAmount),
		StartPeriod:      p.StartPeriod,
		Permanent:        p.End.Permanent,
		EndPeriod:        p.End.Period,
		LastExtendPeriod: p.LastExtendPeriod,
		Approvals:        approvals,
	}
}

type pointDTO struct {
	VotingPower string `json:"voting_power"`
	Slope       string `json:"slope"`
	Fixed       string `json:"fixed"`
}

func toPointDTO(p period.Point) pointDTO {
	return pointDTO{
		VotingPower: bigToString(p.VotingPower),
		Slope:       bigToString(p.Slope),
		Fixed:       bigToString(p.Fixed),
	}
}

type gaugeDTO struct {
	ID              string   `json:"id"`
	Whitelist       []string `json:"whitelist"`
	MinFloorBpsNum  uint64   `json:"min_floor_bps_numerator"`
}

func toGaugeDTO(g *gauge.Gauge) gaugeDTO {
	assets := make([]string, 0, len(g.Whitelist))
	for a := range g.Whitelist {
		assets = append(assets, a)
	}
	return gaugeDTO{ID: g.ID, Whitelist: assets, MinFloorBpsNum: g.MinBpsFloorNumerator}
}

type distributionEntryDTO struct {
	AssetID  string `json:"asset_id"`
	VP       string `json:"vp"`
	ShareWad string `json:"share_wad"`
}

type distributionDTO struct {
	Gauge   string                  `json:"gauge"`
	Period  uint64                  `json:"period"`
	Entries []distributionEntryDTO `json:"entries"`
}

func toDistributionDTO(d *gauge.Distribution) distributionDTO {
	entries := make([]distributionEntryDTO, 0, len(d.Entries))
	for _, e := range d.Entries {
		entries = append(entries, distributionEntryDTO{
			AssetID:  e.AssetID,
			VP:       bigToString(e.VP),
			ShareWad: bigToString(e.ShareWad),
		})
	}
	return distributionDTO{Gauge: d.Gauge, Period: d.Period, Entries: entries}
}

type stakeAssetDTO struct {
	ID                string `json:"id"`
	TotalBalance      string `json:"total_balance"`
	TotalShares       string `json:"total_shares"`
	Taken             string `json:"taken"`
	Harvested         string `json:"harvested"`
	YearlyTakeRateWad string `json:"yearly_take_rate_wad"`
	RewardRateWad     string `json:"reward_rate_wad"`
	Whitelisted       bool   `json:"whitelisted"`
}

func toStakeAssetDTO(a *stake.Asset) stakeAssetDTO {
	return stakeAssetDTO{
		ID:                a.ID,
		TotalBalance:      bigToString(a.TotalBalance),
		TotalShares:       bigToString(a.TotalShares),
		Taken:             bigToString(a.Taken),
		Harvested:         bigToString(a.Harvested),
		YearlyTakeRateWad: bigToString(a.YearlyTakeRateWad),
		RewardRateWad:     bigToString(a.RewardRateWad),
		Whitelisted:       a.Whitelisted,
	}
}

type errorDTO struct {
	Error string `json:"error"`
}
