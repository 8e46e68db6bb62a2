// Command ve3d runs the ve3 accounting engine: EscrowBook, GaugeBook and
// StakeBook wired behind a Coordinator and served over the engineapi HTTP
// surface.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/erisprotocol/ve3engine/config"
	coreState "github.com/erisprotocol/ve3engine/core/state"
	"github.com/erisprotocol/ve3engine/core/events"
	"github.com/erisprotocol/ve3engine/gateway/engineapi"
	"github.com/erisprotocol/ve3engine/gateway/middleware"
	"github.com/erisprotocol/ve3engine/native/coordinator"
	"github.com/erisprotocol/ve3engine/native/gauge"
	"github.com/erisprotocol/ve3engine/native/stake"
	"github.com/erisprotocol/ve3engine/native/voteescrow"
	"github.com/erisprotocol/ve3engine/observability"
	"github.com/erisprotocol/ve3engine/observability/logging"
	"github.com/erisprotocol/ve3engine/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./ve3.toml", "path to engine configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("VE3_ENV"))
	slogger := logging.Setup("ve3d", env)
	logger := log.New(os.Stdout, "ve3d ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := config.ValidatePolicy(cfg.Policy); err != nil {
		logger.Fatalf("invalid policy: %v", err)
	}

	db, closeDB := openDatabase(cfg.DataDir, logger)
	defer closeDB()

	curveStore := coreState.NewCurveStore(db)
	positionStore := coreState.NewPositionStore(db)
	gaugeStore := coreState.NewGaugeStore(db)
	stakeStore := coreState.NewStakeStore(db)

	emitter := &slogEmitter{log: slogger}

	escrowBook := voteescrow.NewBook(positionStore, curveStore, voteescrow.IdentityRates{}, nil, emitter)
	gaugeBook := gauge.NewBook(gaugeStore, curveStore, escrowBook, emitter)
	escrowBook.SetSubscriber(gaugeBook)
	stakeBook := stake.NewBook(stakeStore, stake.NoopForwarder{}, &slogRewardSink{log: slogger}, emitter, nowUnix)

	oracle := buildOracleFromEnv()

	engine := coordinator.New(escrowBook, gaugeBook, stakeBook, oracle)
	engine.SetMetrics(observability.Engine())

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   "ve3d",
		MetricsPrefix: "ve3_gateway",
		LogRequests:   true,
		Enabled:       true,
	}, logger)

	jwtSecret := os.Getenv("VE3_JWT_SECRET")
	slogger.Info("auth configuration", logging.MaskField("hmac_secret", jwtSecret), "issuer", os.Getenv("VE3_JWT_ISSUER"))

	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:        strings.TrimSpace(jwtSecret) != "",
		HMACSecret:     jwtSecret,
		Issuer:         os.Getenv("VE3_JWT_ISSUER"),
		Audience:       os.Getenv("VE3_JWT_AUDIENCE"),
		AllowAnonymous: false,
	}, logger)

	rateLimiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		"engine": {RatePerSecond: 20, Burst: 100},
	}, logger)

	server := engineapi.New(engineapi.Server{
		Coordinator:   engine,
		Positions:     positionStore,
		Gauges:        gaugeStore,
		Stakes:        stakeStore,
		RewardSink:    &slogRewardSink{log: slogger},
		Auth:          auth,
		RateLimiter:   rateLimiter,
		Observability: obs,
		Logger:        logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Fatalf("listen: %v", err)
	}
	go func() {
		logger.Printf("listening on http://%s", listener.Addr())
		if serveErr := httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Fatalf("listen and serve: %v", serveErr)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func openDatabase(dataDir string, logger *log.Logger) (storage.Database, func()) {
	if strings.TrimSpace(dataDir) == "" {
		logger.Println("no data-dir configured, using in-memory database")
		db := storage.NewMemDB()
		return db, func() { db.Close() }
	}
	db, err := storage.NewLevelDB(dataDir)
	if err != nil {
		logger.Fatalf("open leveldb at %s: %v", dataDir, err)
	}
	return db, func() { db.Close() }
}

func nowUnix() uint64 {
	return uint64(time.Now().Unix())
}

// slogEmitter logs every emitted event at info level; there is no indexer
// or RPC subscriber wired into this binary yet.
type slogEmitter struct {
	log *slog.Logger
}

func (e *slogEmitter) Emit(ev events.Event) {
	if attrEv, ok := ev.(interface{ Attributes() map[string]string }); ok {
		args := make([]any, 0, len(attrEv.Attributes())*2)
		for k, v := range attrEv.Attributes() {
			args = append(args, k, v)
		}
		e.log.Info(ev.EventType(), args...)
		return
	}
	e.log.Info(ev.EventType())
}

// slogRewardSink logs reward payouts rather than moving funds; wiring this
// to a real settlement ledger is deferred until one exists in this tree.
type slogRewardSink struct {
	log *slog.Logger
}

func (s *slogRewardSink) Pay(owner [20]byte, assetID string, amount *big.Int) error {
	s.log.Info("reward payout", "owner", hex.EncodeToString(owner[:]), "asset", assetID, "amount", amount.String())
	return nil
}

func buildOracleFromEnv() *coordinator.StaticOracle {
	oracle := coordinator.NewStaticOracle()
	grants := strings.TrimSpace(os.Getenv("VE3_ROLE_GRANTS"))
	if grants == "" {
		return oracle
	}
	// VE3_ROLE_GRANTS is a comma-separated list of role=hexaddress pairs,
	// e.g. "GAUGE_CONTROLLER=aa..,FEE_COLLECTOR=bb..".
	for _, pair := range strings.Split(grants, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		addr, err := hexAddress(parts[1])
		if err != nil {
			continue
		}
		oracle.Grant(coordinator.Role(strings.TrimSpace(parts[0])), addr)
	}
	return oracle
}

func hexAddress(s string) ([20]byte, error) {
	var out [20]byte
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return out, err
	}
	if len(b) != 20 {
		return out, fmt.Errorf("address: want 20 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
