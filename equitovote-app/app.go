package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/equito-network/equitovote/equitovote-app/config"
	apisrv "github.com/equito-network/equitovote/server/api"
	apimw "github.com/equito-network/equitovote/server/api/middleware"
	"github.com/equito-network/equitovote/x/faucet"
	"github.com/equito-network/equitovote/x/flows"
	"github.com/equito-network/equitovote/x/gateway"
	"github.com/equito-network/equitovote/x/orchestrator"
	"github.com/equito-network/equitovote/x/pingpong"
	"github.com/equito-network/equitovote/x/proposals"
	"github.com/equito-network/equitovote/x/registry"
	"github.com/equito-network/equitovote/x/relay"
)

// App wires the voting service together: chain registry, node clients,
// wallet, gateway, relay client, orchestrator and the HTTP API.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	reg       *registry.Registry
	wallet    *gateway.Wallet
	gw        *gateway.Gateway
	relay     *relay.Client
	orch      *orchestrator.Orchestrator
	apiServer *apisrv.Server

	nodeClients []*ethclient.Client

	cancel context.CancelFunc
}

// NewApp creates a new application instance
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg: cfg,
		log: log.With().Str("component", "app").Logger(),
	}

	if err := app.initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	return app, nil
}

// initialize sets up the application components
func (a *App) initialize(ctx context.Context) error {
	if err := a.initializeRegistry(); err != nil {
		return err
	}

	clients, err := a.dialNodeClients(ctx)
	if err != nil {
		return err
	}

	if err := a.initializeGateway(ctx, clients); err != nil {
		return err
	}

	if err := a.initializeOrchestration(); err != nil {
		return err
	}

	return a.initializeAPIServer()
}

func (a *App) initializeRegistry() error {
	if strings.TrimSpace(a.cfg.Registry.File) != "" {
		reg, err := registry.Load(a.cfg.Registry.File)
		if err != nil {
			return fmt.Errorf("failed to load chain registry: %w", err)
		}
		a.reg = reg
	} else {
		a.reg = registry.Default()
	}

	a.log.Info().
		Int("chains", len(a.reg.Chains())).
		Str("destination", a.reg.Destination().Name).
		Msg("Chain registry loaded")
	return nil
}

// dialNodeClients connects to every registered chain's node endpoint.
func (a *App) dialNodeClients(ctx context.Context) (map[uint64]gateway.EthClient, error) {
	clients := make(map[uint64]gateway.EthClient, len(a.reg.Chains()))
	for _, chain := range a.reg.Chains() {
		if strings.TrimSpace(chain.RPCEndpoint) == "" {
			return nil, fmt.Errorf("chain %s has no rpc endpoint", chain.Name)
		}
		client, err := ethclient.DialContext(ctx, chain.RPCEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", chain.Name, err)
		}
		clients[chain.ChainID] = client
		a.nodeClients = append(a.nodeClients, client)
		a.log.Debug().Str("chain", chain.Name).Uint64("chain_id", chain.ChainID).Msg("Node client connected")
	}
	return clients, nil
}

func (a *App) initializeGateway(ctx context.Context, clients map[uint64]gateway.EthClient) error {
	var signer gateway.Signer
	if strings.TrimSpace(a.cfg.Wallet.PrivateKey) != "" {
		s, err := gateway.NewLocalECDSASignerFromHex(a.cfg.Wallet.PrivateKey)
		if err != nil {
			return fmt.Errorf("failed to load wallet key: %w", err)
		}
		signer = s
		a.log.Info().Str("address", s.Address().Hex()).Msg("Wallet connected")
	} else {
		a.log.Warn().Msg("No wallet key configured, starting disconnected")
	}

	initialChainID := a.cfg.Wallet.InitialChainID
	if initialChainID == 0 {
		initialChainID = a.reg.Chains()[0].ChainID
	}

	wallet, err := gateway.NewWallet(signer, a.reg, initialChainID, a.log)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	a.wallet = wallet

	gw, err := gateway.NewGateway(a.cfg.ToGateway(), a.reg, wallet, clients, a.log)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	if err := gw.VerifyChainIDs(ctx); err != nil {
		return fmt.Errorf("rpc endpoint check failed: %w", err)
	}
	a.gw = gw
	return nil
}

func (a *App) initializeOrchestration() error {
	relayOpts := []relay.ClientOption{}
	orchOpts := []orchestrator.Option{}
	if a.cfg.Metrics.Enabled {
		relayOpts = append(relayOpts, relay.WithMetrics(relay.NewMetrics(nil)))
		orchOpts = append(orchOpts, orchestrator.WithMetrics(orchestrator.NewMetrics(nil)))
	}

	relayClient, err := relay.NewClient(a.cfg.ToRelay(), a.log, relayOpts...)
	if err != nil {
		return fmt.Errorf("failed to create relay client: %w", err)
	}
	a.relay = relayClient

	orch, err := orchestrator.New(a.gw, relayClient, a.reg, a.log, orchOpts...)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	a.orch = orch
	return nil
}

// initializeAPIServer sets up the HTTP API server with all endpoints
func (a *App) initializeAPIServer() error {
	fees := flows.NewFeeService(a.gw, a.relay, a.reg, a.log)
	builder := flows.NewBuilder(a.reg, fees, a.log)

	proposalSvc, err := proposals.NewService(a.gw, a.gw, a.reg, a.log)
	if err != nil {
		return fmt.Errorf("failed to create proposal service: %w", err)
	}
	faucetSvc := faucet.NewService(a.gw, a.gw, a.reg, a.log)
	pingpongSvc := pingpong.NewService(a.orch, builder, fees, a.gw, a.reg, a.log)

	s := apisrv.NewServer(a.cfg.ToAPI(), a.log)
	s.Use(apimw.Recover(a.log))
	s.Use(apimw.RequestID())
	s.Use(apimw.Logger(a.log))
	if a.cfg.API.EnableCORS {
		s.EnableCORS()
	}

	handlers := apisrv.NewHandlers(a.wallet, a.orch, builder, proposalSvc, faucetSvc, pingpongSvc, a.reg, a.log)
	handlers.Register(s.Router)

	if a.cfg.Metrics.Enabled {
		s.Router.Handle(a.cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
	}

	a.apiServer = s
	return nil
}

// Run starts the application and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.apiServer.Start(runCtx)
	}()

	return a.runWithGracefulShutdown(runCtx, errCh)
}

// runWithGracefulShutdown handles shutdown signals.
func (a *App) runWithGracefulShutdown(ctx context.Context, errCh chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info().Msg("EquitoVote started successfully")

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("Context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case serveErr = <-errCh:
		if serveErr != nil {
			a.log.Error().Err(serveErr).Msg("API server error")
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	a.shutdown()
	return serveErr
}

// shutdown closes node connections after the HTTP server has drained.
func (a *App) shutdown() {
	a.log.Info().Msg("Initiating graceful shutdown")

	for _, client := range a.nodeClients {
		client.Close()
	}

	a.log.Info().Msg("Graceful shutdown complete")
}
