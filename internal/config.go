package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
)

// DefaultTrustedRelays is used when TRUSTED_RELAYS is empty.
// It only applies to the relay ingress port, never to BROKER_PORT.
var DefaultTrustedRelays = []string{"127.0.0.1", "::1"}

var validate = validator.New()

type BrokerConfig struct {
	Host                 string        `env:"BROKER_HOST,default=127.0.0.1" validate:"required"`
	Port                 int           `env:"BROKER_PORT,default=8888" validate:"min=1,max=65535"`
	RelayIngressPort     int           `env:"RELAY_INGRESS_PORT,default=8890" validate:"min=0,max=65535,nefield=Port"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO" validate:"required"`
	RateLimit            int           `env:"RATE_LIMIT,default=5" validate:"min=1"`
	RateWindow           time.Duration `env:"RATE_WINDOW,default=3s" validate:"gt=0"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64" validate:"min=1"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=5s" validate:"gte=0"`
	AuditFilepath        string        `env:"AUDIT_FILEPATH,default=chat_server_log.csv" validate:"required"`
	AuditBufferSize      int           `env:"AUDIT_BUFFER_SIZE,default=256" validate:"min=1"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=1s" validate:"gt=0"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=10s" validate:"gt=0"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	TrustedRelays        string        `env:"TRUSTED_RELAYS"`
	ModerationEnabled    bool          `env:"MODERATION_ENABLED,default=false"`
	CharReplacement      string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=#"`
	DebugPort            int           `env:"DEBUG_PORT,default=0" validate:"min=0,max=65535"`
}

// TrustedRelayList splits TRUSTED_RELAYS on commas and spaces.
func (c BrokerConfig) TrustedRelayList() []string {
	fields := strings.FieldsFunc(c.TrustedRelays, func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return DefaultTrustedRelays
	}
	return fields
}

func (c BrokerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IngressAddress is empty when RELAY_INGRESS_PORT is 0, which disables relayed names.
func (c BrokerConfig) IngressAddress() string {
	if c.RelayIngressPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.RelayIngressPort)
}

type RelayConfig struct {
	Host            string        `env:"RELAY_HOST,default=127.0.0.1" validate:"required"`
	Port            int           `env:"RELAY_PORT,default=8889" validate:"min=1,max=65535"`
	UpstreamHost    string        `env:"RELAY_UPSTREAM_HOST,default=127.0.0.1" validate:"required"`
	UpstreamPort    int           `env:"RELAY_UPSTREAM_PORT,default=8890" validate:"min=1,max=65535"`
	DialTimeout     time.Duration `env:"DIAL_TIMEOUT,default=5s" validate:"gt=0"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"required"`
	StatsInterval   time.Duration `env:"STATS_INTERVAL,default=10s" validate:"gt=0"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
}

func (c RelayConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RelayConfig) UpstreamAddress() string {
	return fmt.Sprintf("%s:%d", c.UpstreamHost, c.UpstreamPort)
}

type ClientConfig struct {
	Host     string `env:"CHAT_HOST,default=127.0.0.1" validate:"required"`
	Port     int    `env:"CHAT_PORT,default=8888" validate:"min=1,max=65535"`
	Name     string `env:"CHAT_NAME"`
	LogLevel string `env:"LOG_LEVEL,default=WARN" validate:"required"`
}

func (c ClientConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadBrokerConfig reads the environment, then lets --host and --port override it.
func LoadBrokerConfig(args []string) (BrokerConfig, error) {
	var cfg BrokerConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("config error: %w", err)
	}
	fs := pflag.NewFlagSet("broker", pflag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "address the broker listens on")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port the broker listens on")
	fs.IntVar(&cfg.RelayIngressPort, "relay-ingress-port", cfg.RelayIngressPort, "port relays connect to, 0 to disable")
	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("flags error: %w", err)
	}
	if _, err := CharacterRune(cfg.CharReplacement); err != nil {
		return cfg, err
	}
	return cfg, validateConfig(cfg)
}

func LoadRelayConfig(args []string) (RelayConfig, error) {
	var cfg RelayConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("config error: %w", err)
	}
	fs := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	fs.StringVar(&cfg.Host, "relay-host", cfg.Host, "address the relay listens on")
	fs.IntVar(&cfg.Port, "relay-port", cfg.Port, "port the relay listens on")
	fs.StringVar(&cfg.UpstreamHost, "server-host", cfg.UpstreamHost, "broker address")
	fs.IntVar(&cfg.UpstreamPort, "server-port", cfg.UpstreamPort, "broker relay ingress port")
	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("flags error: %w", err)
	}
	return cfg, validateConfig(cfg)
}

func LoadClientConfig(args []string) (ClientConfig, error) {
	var cfg ClientConfig
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return cfg, fmt.Errorf("config error: %w", err)
	}
	fs := pflag.NewFlagSet("client", pflag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "broker or relay address")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "broker or relay port")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "nickname, asked on stdin when empty")
	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("flags error: %w", err)
	}
	return cfg, validateConfig(cfg)
}

func validateConfig(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
