package config

import "strings"

// Config is the top-level runtime configuration.
type Config struct {
	App    AppConfig    `toml:"app"`
	HTTP   HTTPConfig   `toml:"http"`
	Store  StoreConfig  `toml:"store"`
	Broker BrokerConfig `toml:"broker"`
	OCO    OCOConfig    `toml:"oco"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// StoreConfig selects the group store backend. Kind is "sqlite" or
// "memory"; Path applies to sqlite only.
type StoreConfig struct {
	Kind string `toml:"kind"`
	Path string `toml:"path"`
}

type BrokerConfig struct {
	Name    string        `toml:"name"`
	Binance BinanceConfig `toml:"binance"`
}

type BinanceConfig struct {
	APIKey         string      `toml:"api_key"`
	APISecret      string      `toml:"api_secret"`
	RESTBaseURL    string      `toml:"rest_base_url"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	Proxy          ProxyConfig `toml:"proxy"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
}

// OCOConfig tunes the order-group orchestrator.
type OCOConfig struct {
	PollIntervalSeconds      int `toml:"poll_interval_seconds"`
	GatewayTimeoutSeconds    int `toml:"gateway_timeout_seconds"`
	ReconcileIntervalSeconds int `toml:"reconcile_interval_seconds"`
	DispatchBuffer           int `toml:"dispatch_buffer"`
}

// keySet tracks which field paths the config files set explicitly.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the defaulting rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
