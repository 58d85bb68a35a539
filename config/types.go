package config

// RPC controls the JSON-RPC listener.
type RPC struct {
	// AuthTokenEnv names the environment variable holding the bearer token
	// required for ledger_sendTransaction. Empty disables authentication.
	AuthTokenEnv       string   `toml:"AuthTokenEnv"`
	RateLimitPerMinute uint32   `toml:"RateLimitPerMinute"`
	RateLimitBurst     int      `toml:"RateLimitBurst"`
	ReadHeaderTimeout  uint32   `toml:"ReadHeaderTimeout"` // seconds
	ReadTimeout        uint32   `toml:"ReadTimeout"`
	WriteTimeout       uint32   `toml:"WriteTimeout"`
	IdleTimeout        uint32   `toml:"IdleTimeout"`
	MaxBodyBytes       int64    `toml:"MaxBodyBytes"`
	AllowedOrigins     []string `toml:"AllowedOrigins"`
	JWT                RPCJWT   `toml:"jwt"`
}

// RPCJWT enables HMAC-signed JWT bearer tokens for ledger_sendTransaction
// alongside the static token.
type RPCJWT struct {
	Enable         bool   `toml:"Enable"`
	HSSecretEnv    string `toml:"HSSecretEnv"`
	Issuer         string `toml:"Issuer"`
	Audience       string `toml:"Audience"`
	MaxSkewSeconds uint32 `toml:"MaxSkewSeconds"`
}

const (
	defaultRPCAddress         = ":8545"
	defaultDataDir            = "./r2s-data"
	defaultChainID            = uint64(31337)
	defaultEnv                = "dev"
	defaultLogLevel           = "info"
	defaultAuthTokenEnv       = "R2S_RPC_TOKEN"
	defaultRateLimitPerMinute = uint32(600)
	defaultRateLimitBurst     = 60
	defaultReadHeaderTimeout  = uint32(5)
	defaultReadTimeout        = uint32(15)
	defaultWriteTimeout       = uint32(15)
	defaultIdleTimeout        = uint32(60)
	defaultMaxBodyBytes       = int64(1 << 20)
)

func (r *RPC) applyDefaults() {
	if r.RateLimitPerMinute > 0 && r.RateLimitBurst == 0 {
		r.RateLimitBurst = defaultRateLimitBurst
	}
	if r.ReadHeaderTimeout == 0 {
		r.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if r.ReadTimeout == 0 {
		r.ReadTimeout = defaultReadTimeout
	}
	if r.WriteTimeout == 0 {
		r.WriteTimeout = defaultWriteTimeout
	}
	if r.IdleTimeout == 0 {
		r.IdleTimeout = defaultIdleTimeout
	}
	if r.MaxBodyBytes == 0 {
		r.MaxBodyBytes = defaultMaxBodyBytes
	}
	if r.AllowedOrigins == nil {
		r.AllowedOrigins = []string{}
	}
}
