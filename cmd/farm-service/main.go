package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gemstake/pkg/anchor"
	"gemstake/pkg/config"
	"gemstake/pkg/logging"
	"gemstake/pkg/protocol"
	"gemstake/pkg/staking"
	"gemstake/pkg/subscription"
)

var (
	configPath      = flag.String("config", "", "YAML config file")
	rpcEndpoints    = flag.String("rpc", "", "Comma-separated Solana RPC endpoints (reads RPC_ENDPOINTS if empty)")
	farmAddress     = flag.String("farm", "", "Farm address (reads FARM_ID if empty)")
	port            = flag.Int("port", 8080, "HTTP server port")
	refreshInterval = flag.Int("refresh", 30, "Farmer refresh interval in seconds")
	noWebSocket     = flag.Bool("no-ws", false, "Disable websocket account subscriptions")
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gemstake",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "HTTP requests by route and status code.",
}, []string{"route", "code"})

type server struct {
	svc       *staking.Service
	cache     *FarmerCache
	startTime time.Time
	log       *zap.SugaredLogger
}

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load .env file: %v\n", err)
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *rpcEndpoints != "" {
		cfg.RPCEndpoints = config.SplitList(*rpcEndpoints)
	}
	if *farmAddress != "" {
		cfg.Farm = *farmAddress
	}

	log := logging.Must(cfg.LogLevel, false)
	defer log.Sync() //nolint:errcheck
	sugar := log.Sugar()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := staking.NewFromConfig(ctx, cfg, log)
	if err != nil {
		sugar.Fatalf("Failed to create staking service: %v", err)
	}

	var mgr *subscription.Manager
	if !*noWebSocket {
		wsURL := cfg.WebSocketURL()
		sugar.Infof("Initializing WebSocket connection to %s", wsURL)
		mgr, err = subscription.NewManager(ctx, wsURL, rpc.CommitmentType(cfg.Commitment), log)
		if err != nil {
			sugar.Warnf("Failed to create WebSocket subscription manager: %v", err)
			sugar.Warnf("Falling back to RPC-only mode")
			mgr = nil
		} else {
			defer mgr.Close()
		}
	}

	cache := NewFarmerCache(svc, mgr, time.Duration(*refreshInterval)*time.Second, log)
	go cache.StartPeriodicRefresh(ctx)

	s := &server{svc: svc, cache: cache, startTime: time.Now(), log: sugar}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		sugar.Infof("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugar.Errorf("Server shutdown error: %v", err)
		}
		cancel()
	}()

	sugar.Infof("Gem farm service for %s listening on http://localhost:%d", svc.FarmID, *port)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		sugar.Fatalf("Server error: %v", err)
	}
	sugar.Infof("Server stopped")
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	r.HandleFunc("/farm", s.handleFarm).Methods(http.MethodGet)
	r.HandleFunc("/farmers/{identity}", s.handleFarmer).Methods(http.MethodGet)
	r.HandleFunc("/farmers/{identity}/rewards", s.handleRewards).Methods(http.MethodGet)
	r.HandleFunc("/farmers/{identity}/vault", s.handleVault).Methods(http.MethodGet)
	r.HandleFunc("/wallets/{owner}/nfts", s.handleWalletNFTs).Methods(http.MethodGet)
	r.HandleFunc("/tx/stake", s.handleStakeTx).Methods(http.MethodPost)
	r.HandleFunc("/tx/unstake", s.handleUnstakeTx).Methods(http.MethodPost)
	r.HandleFunc("/tx/claim", s.handleClaimTx).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return corsMiddleware(r)
}

func (s *server) handleFarm(w http.ResponseWriter, r *http.Request) {
	farm, err := s.cache.Farm(r.Context())
	if err != nil {
		s.writeFetchError(w, err)
		return
	}
	treasury, err := s.svc.Farm.FetchTreasuryBalance(r.Context(), s.svc.FarmID)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FarmResponse{Address: s.svc.FarmID.String(), Farm: farm, Treasury: treasury})
}

func (s *server) handleFarmer(w http.ResponseWriter, r *http.Request) {
	identity, ok := pathKey(w, r, "identity")
	if !ok {
		return
	}
	cached, hit, err := s.cache.GetOrFetch(r.Context(), identity)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}
	if cached == nil {
		writeError(w, fmt.Sprintf("no farmer for %s", identity), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, FarmerResponse{
		FarmerInfo: cached.Info,
		Cached:     hit,
		LastUpdate: cached.LastUpdate,
		Slot:       cached.Slot,
	})
}

func (s *server) handleRewards(w http.ResponseWriter, r *http.Request) {
	identity, ok := pathKey(w, r, "identity")
	if !ok {
		return
	}
	rewards, err := s.svc.FetchAvailableRewards(r.Context(), identity)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RewardsResponse{
		Identity: identity.String(),
		RewardA:  rewards.RewardA.String(),
		RewardB:  rewards.RewardB.String(),
	})
}

func (s *server) handleVault(w http.ResponseWriter, r *http.Request) {
	identity, ok := pathKey(w, r, "identity")
	if !ok {
		return
	}
	nfts, err := s.svc.FetchVaultNFTs(r.Context(), identity)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NFTsResponse{Owner: identity.String(), Count: len(nfts), NFTs: nfts})
}

func (s *server) handleWalletNFTs(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathKey(w, r, "owner")
	if !ok {
		return
	}
	nfts, err := s.svc.FetchWalletNFTs(r.Context(), owner)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NFTsResponse{Owner: owner.String(), Count: len(nfts), NFTs: nfts})
}

func (s *server) handleStakeTx(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTxRequest(w, r, true)
	if !ok {
		return
	}
	params := staking.StakeParams{Owner: req.owner, Mint: req.mint, TokenAccount: req.tokenAccount, Creator: req.creator}
	if params.TokenAccount.IsZero() {
		writeError(w, "Missing required field: tokenAccount", http.StatusBadRequest)
		return
	}
	ixs, err := s.svc.StakeToken(r.Context(), params)
	s.writeTx(w, r, req.owner, ixs, err)
}

func (s *server) handleUnstakeTx(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTxRequest(w, r, true)
	if !ok {
		return
	}
	ixs, err := s.svc.UnstakeToken(r.Context(), req.owner, req.mint)
	s.writeTx(w, r, req.owner, ixs, err)
}

func (s *server) handleClaimTx(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTxRequest(w, r, false)
	if !ok {
		return
	}
	ixs, err := s.svc.ClaimAll(r.Context(), req.owner)
	s.writeTx(w, r, req.owner, ixs, err)
}

func (s *server) writeTx(w http.ResponseWriter, r *http.Request, owner solana.PublicKey, ixs []solana.Instruction, err error) {
	if err != nil {
		s.writeFetchError(w, err)
		return
	}
	encoded, err := s.svc.BuildUnsigned(r.Context(), ixs, owner)
	if err != nil {
		s.writeFetchError(w, err)
		return
	}

	names := make([]string, 0, len(ixs))
	for _, ix := range ixs {
		if inst, ok := ix.(*anchor.Instruction); ok {
			names = append(names, inst.Name)
		}
	}
	writeJSON(w, http.StatusOK, TxResponse{Transaction: encoded, Instructions: names, FeePayer: owner.String()})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		LastUpdate:    s.cache.LastUpdate(),
		CachedFarmers: s.cache.Size(),
		WebSocket:     s.cache.WebSocketConnected(),
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
	})
}

// writeFetchError maps missing accounts to 404 and everything else to 500.
func (s *server) writeFetchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, protocol.ErrAccountNotFound), errors.Is(err, staking.ErrNoFarmer):
		writeError(w, err.Error(), http.StatusNotFound)
	default:
		s.log.Errorf("Request failed: %v", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

type txRequest struct {
	owner, mint, tokenAccount, creator solana.PublicKey
}

func decodeTxRequest(w http.ResponseWriter, r *http.Request, needMint bool) (txRequest, bool) {
	var body TxRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return txRequest{}, false
	}
	if body.Owner == "" || (needMint && body.Mint == "") {
		writeError(w, "Missing required fields: owner, mint", http.StatusBadRequest)
		return txRequest{}, false
	}

	var req txRequest
	fields := []struct {
		name  string
		value string
		dst   *solana.PublicKey
	}{
		{"owner", body.Owner, &req.owner},
		{"mint", body.Mint, &req.mint},
		{"tokenAccount", body.TokenAccount, &req.tokenAccount},
		{"creator", body.Creator, &req.creator},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		pk, err := solana.PublicKeyFromBase58(f.value)
		if err != nil {
			writeError(w, fmt.Sprintf("Invalid %s: %v", f.name, err), http.StatusBadRequest)
			return txRequest{}, false
		}
		*f.dst = pk
	}
	return req, true
}

func pathKey(w http.ResponseWriter, r *http.Request, name string) (solana.PublicKey, bool) {
	pk, err := solana.PublicKeyFromBase58(mux.Vars(r)[name])
	if err != nil {
		writeError(w, fmt.Sprintf("Invalid %s: %v", name, err), http.StatusBadRequest)
		return solana.PublicKey{}, false
	}
	return pk, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.code = code
	rec.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unknown"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		httpRequests.WithLabelValues(route, fmt.Sprint(rec.code)).Inc()
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
