package state

// Key prefixes for the durable maps listed in the engine's persisted
// state layout: positions, curve points, slope changes, gauge votes and
// distributions, stake assets, and rebase watermarks.
var (
	positionPrefix         = []byte("ve3/position/")
	ownerTokensPrefix      = []byte("ve3/ownerTokens/")
	tokenSeqKey            = []byte("ve3/tokenSeq")
	curvePointPrefixFormat = "ve3/curvePoint/%s/%d"
	curvePointIndexFormat  = "ve3/curvePointIdx/%s"
	slopeChangePrefixFormat = "ve3/slopeChange/%s/%d"
	slopeChangeIndexFormat  = "ve3/slopeChangeIdx/%s"

	gaugePrefix            = []byte("ve3g/gauge/")
	gaugeAllocationFormat  = "ve3g/allocation/%s/%x"
	ownerGaugesFormat      = "ve3g/ownerGauges/%x"
	gaugeDistributionFormat = "ve3g/distribution/%s/%d"
	gaugeLastDistFormat    = "ve3g/lastDistribution/%s"
	rebaseWatermarkFormat  = "ve3g/rebaseWatermark/%x"

	stakeAssetPrefix = []byte("ve3s/asset/")
)
