package config

import "strings"

const (
	defaultAppEnv              = "dev"
	defaultAppLogLevel         = "info"
	defaultAppLogPath          = "/data/logs/bracket.log"
	defaultHTTPAddr            = ":9980"
	defaultStoreKind           = "sqlite"
	defaultStorePath           = "/data/db/bracket.db"
	defaultBrokerName          = "binance"
	defaultBinanceREST         = "https://fapi.binance.com"
	defaultBinanceTimeout      = 15
	defaultOCOPollSeconds      = 1
	defaultOCOGatewaySeconds   = 10
	defaultOCOReconcileSeconds = 60
	defaultOCODispatchBuffer   = 256
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Broker.applyDefaults(keys)
	c.OCO.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.kind", &s.Kind, defaultStoreKind),
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
}

func (b *BrokerConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("broker.name", &b.Name, defaultBrokerName),
		stringFieldDefault("broker.binance.rest_base_url", &b.Binance.RESTBaseURL, defaultBinanceREST),
		fieldDefault{
			key:   "broker.binance.timeout_seconds",
			need:  func() bool { return b.Binance.TimeoutSeconds <= 0 },
			apply: func() { b.Binance.TimeoutSeconds = defaultBinanceTimeout },
		},
	)
	b.Name = strings.ToLower(strings.TrimSpace(b.Name))
	b.Binance.Proxy.normalize()
}

func (o *OCOConfig) applyDefaults(keys keySet) {
	if o == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "oco.poll_interval_seconds",
			need:  func() bool { return o.PollIntervalSeconds <= 0 },
			apply: func() { o.PollIntervalSeconds = defaultOCOPollSeconds },
		},
		fieldDefault{
			key:   "oco.gateway_timeout_seconds",
			need:  func() bool { return o.GatewayTimeoutSeconds <= 0 },
			apply: func() { o.GatewayTimeoutSeconds = defaultOCOGatewaySeconds },
		},
		fieldDefault{
			key:   "oco.reconcile_interval_seconds",
			need:  func() bool { return o.ReconcileIntervalSeconds <= 0 },
			apply: func() { o.ReconcileIntervalSeconds = defaultOCOReconcileSeconds },
		},
		fieldDefault{
			key:   "oco.dispatch_buffer",
			need:  func() bool { return o.DispatchBuffer <= 0 },
			apply: func() { o.DispatchBuffer = defaultOCODispatchBuffer },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
