package config

import "time"

// Config contains all application settings
type Config struct {
	BindPort      int    `mapstructure:"PORT" yaml:"port"`
	BindHost      string `mapstructure:"HOST" yaml:"host"`
	DatabaseURL   string `mapstructure:"DATABASE_URL" yaml:"database_url"`
	NATSServerURL string `mapstructure:"NATS_URL" yaml:"nats_url"`
	LogLevel      string `mapstructure:"LOG_LEVEL" yaml:"log_level"`

	// Transport selects the push transport client, "nats" or "websocket".
	Transport     string `mapstructure:"TRANSPORT" yaml:"transport"`
	SubjectPrefix string `mapstructure:"SUBJECT_PREFIX" yaml:"subject_prefix"`
	WebSocketPath string `mapstructure:"WEBSOCKET_PATH" yaml:"websocket_path"`

	DefaultBridge        int32         `mapstructure:"DEFAULT_BRIDGE" yaml:"default_bridge"`
	PollInterval         time.Duration `mapstructure:"POLL_INTERVAL" yaml:"poll_interval"`
	MaxReconnectAttempts int           `mapstructure:"MAX_RECONNECT_ATTEMPTS" yaml:"max_reconnect_attempts"`

	SessionSweepInterval time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL" yaml:"session_sweep_interval"`
	PingSweepInterval    time.Duration `mapstructure:"PING_SWEEP_INTERVAL" yaml:"ping_sweep_interval"`
	PingCleanupInterval  time.Duration `mapstructure:"PING_CLEANUP_INTERVAL" yaml:"ping_cleanup_interval"`
	PingCleanupLimit     int           `mapstructure:"PING_CLEANUP_LIMIT" yaml:"ping_cleanup_limit"`

	// RPCTimeout bounds a single forwarded operation. Zero leaves it unbounded.
	RPCTimeout    time.Duration `mapstructure:"RPC_TIMEOUT" yaml:"rpc_timeout"`
	RPCOperations []string      `mapstructure:"RPC_OPERATIONS" yaml:"rpc_operations"`

	OAuthClientID    string `mapstructure:"OAUTH_CLIENT_ID" yaml:"oauth_client_id"`
	AuthorityEnabled bool   `mapstructure:"AUTHORITY_ENABLED" yaml:"authority_enabled"`

	// Version
	BuildVersion string `yaml:"-"`
	BuildHash    string `yaml:"-"`
	BuildTime    string `yaml:"-"`
}
