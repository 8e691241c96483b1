package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Broker.validate(); err != nil {
		return err
	}
	if err := c.OCO.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr cannot be empty")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Kind {
	case "sqlite":
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("store.path cannot be empty for sqlite")
		}
	case "memory":
	default:
		return fmt.Errorf("store.kind only supports 'sqlite' or 'memory', got %s", s.Kind)
	}
	return nil
}

func (b *BrokerConfig) validate() error {
	switch b.Name {
	case "binance":
	default:
		return fmt.Errorf("broker.name only supports 'binance', got %s", b.Name)
	}
	bn := b.Binance
	if strings.TrimSpace(bn.APIKey) == "" || strings.TrimSpace(bn.APISecret) == "" {
		return fmt.Errorf("broker.binance requires api_key and api_secret")
	}
	if strings.TrimSpace(bn.RESTBaseURL) == "" {
		return fmt.Errorf("broker.binance.rest_base_url cannot be empty")
	}
	if bn.Proxy.Enabled && bn.Proxy.RESTURL == "" {
		return fmt.Errorf("broker.binance has proxy enabled but no rest_url")
	}
	return nil
}

func (o *OCOConfig) validate() error {
	if o.PollIntervalSeconds <= 0 {
		return fmt.Errorf("oco.poll_interval_seconds must be > 0")
	}
	if o.GatewayTimeoutSeconds <= 0 {
		return fmt.Errorf("oco.gateway_timeout_seconds must be > 0")
	}
	if o.ReconcileIntervalSeconds <= 0 {
		return fmt.Errorf("oco.reconcile_interval_seconds must be > 0")
	}
	return nil
}
