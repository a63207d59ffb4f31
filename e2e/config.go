package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_BROKER_ADDR and E2E_RELAY_ADDR target running processes; empty starts them in-process
	BrokerAddr string `envconfig:"E2E_BROKER_ADDR"`
	RelayAddr  string `envconfig:"E2E_RELAY_ADDR"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool   `envconfig:"E2E_COLOURS" default:"true"`
	Timeout string `envconfig:"E2E_TIMEOUT" default:"3s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
