package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bracket/internal/broker"
	brcfg "bracket/internal/config"
	"bracket/internal/dispatch"
	binancegw "bracket/internal/gateway/binance"
	"bracket/internal/logger"
	"bracket/internal/oco"
	"bracket/internal/store"
	"bracket/internal/store/memory"
	"bracket/internal/store/sqlite"
	apihttp "bracket/internal/transport/http/api"
)

func buildApp(cfg *brcfg.Config) (*App, error) {
	st, err := buildStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	gw, feed, err := buildGateway(cfg.Broker)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	manager, err := oco.NewManager(gw, feed, st, oco.Options{
		PollInterval:      time.Duration(cfg.OCO.PollIntervalSeconds) * time.Second,
		GatewayTimeout:    time.Duration(cfg.OCO.GatewayTimeoutSeconds) * time.Second,
		ReconcileInterval: time.Duration(cfg.OCO.ReconcileIntervalSeconds) * time.Second,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	dispatcher := dispatch.New(manager, cfg.OCO.DispatchBuffer)

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:     cfg.HTTP.Addr,
		Groups:   manager,
		Store:    st,
		Ingestor: dispatcher,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}
	logger.Infof("✓ HTTP API listening on %s", server.Addr())

	return &App{
		cfg:        cfg,
		store:      st,
		manager:    manager,
		dispatcher: dispatcher,
		httpServer: server,
	}, nil
}

func buildStore(cfg brcfg.StoreConfig) (store.GroupStore, error) {
	switch cfg.Kind {
	case "memory":
		logger.Infof("✓ Group store: memory (state is lost on restart)")
		return memory.New(), nil
	default:
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
		st, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open group store: %w", err)
		}
		logger.Infof("✓ Group store: sqlite %s", cfg.Path)
		return st, nil
	}
}

func buildGateway(cfg brcfg.BrokerConfig) (broker.Gateway, broker.Feed, error) {
	switch cfg.Name {
	case "binance":
		gw, err := binancegw.New(binancegw.Config{
			APIKey:       cfg.Binance.APIKey,
			APISecret:    cfg.Binance.APISecret,
			RESTBaseURL:  cfg.Binance.RESTBaseURL,
			HTTPTimeout:  time.Duration(cfg.Binance.TimeoutSeconds) * time.Second,
			ProxyEnabled: cfg.Binance.Proxy.Enabled,
			RESTProxyURL: cfg.Binance.Proxy.RESTURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init binance gateway: %w", err)
		}
		logger.Infof("✓ Broker gateway: binance %s", cfg.Binance.RESTBaseURL)
		return gw, binancegw.NewFeed(gw), nil
	default:
		return nil, nil, fmt.Errorf("unsupported broker: %s", cfg.Name)
	}
}
