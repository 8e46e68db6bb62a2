package engineapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erisprotocol/ve3engine/native/coordinator"
	"github.com/erisprotocol/ve3engine/native/gauge"
	"github.com/erisprotocol/ve3engine/native/period"
	"github.com/erisprotocol/ve3engine/native/stake"
	"github.com/erisprotocol/ve3engine/native/voteescrow"
)

func owner(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

var luna = voteescrow.AssetInfo{Kind: "native", Denom: "uluna"}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	positions := voteescrow.NewMemPositionStore()
	gauges := gauge.NewMemStore()
	stakes := stake.NewMemStore()

	escrowBook := voteescrow.NewBook(positions, period.NewMemStore(), nil, nil, nil)
	gaugeBook := gauge.NewBook(gauges, period.NewMemStore(), escrowBook, nil)
	escrowBook.SetSubscriber(gaugeBook)
	stakeBook := stake.NewBook(stakes, nil, nil, nil, func() uint64 { return 0 })

	engine := coordinator.New(escrowBook, gaugeBook, stakeBook, coordinator.NewStaticOracle())

	return New(Server{
		Coordinator: engine,
		Positions:   positions,
		Gauges:      gauges,
		Stakes:      stakes,
	})
}

func TestCreateLockThenGetPosition(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	body, err := json.Marshal(createLockRequest{
		Owner:      hex.EncodeToString(owner(1)[:]),
		AssetKind:  luna.Kind,
		AssetDenom: luna.Denom,
		Amount:     "1000",
		AtPeriod:   0,
		DtPeriods:  10,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/locks", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created positionDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "1000", created.Amount)

	getReq := httptest.NewRequest(http.MethodGet, "/v1/positions/"+created.TokenID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var fetched positionDTO
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &fetched))
	require.Equal(t, created.TokenID, fetched.TokenID)
	require.Equal(t, hex.EncodeToString(owner(1)[:]), fetched.Owner)
}

func TestGetPositionMissingReturnsNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/positions/does-not-exist", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetDistributionRejectsCallerWithoutGaugeController(t *testing.T) {
	s := newTestServer(t)
	_, err := s.Coordinator.Gauge.CreateGauge("gauge-1", []string{"uluna"}, 0)
	require.NoError(t, err)

	body, err := json.Marshal(setDistributionRequest{
		callerRequest: callerRequest{Caller: hex.EncodeToString(owner(2)[:])},
		Period:        1,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/gauges/gauge-1/distribution", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStakeAndGetStakeAsset(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Coordinator.StakeBook.RegisterAsset("uluna", big.NewInt(0)))

	body, err := json.Marshal(stakeRequest{Owner: hex.EncodeToString(owner(3)[:]), Amount: "500"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/stake/assets/uluna/stake", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	getReq := httptest.NewRequest(http.MethodGet, "/v1/stake/assets/uluna", nil)
	getRec := httptest.NewRecorder()
	s.Router().ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	var asset stakeAssetDTO
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &asset))
	require.Equal(t, "500", asset.TotalBalance)
}
