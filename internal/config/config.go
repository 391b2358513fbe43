// Package config loads the daemon configuration: literal defaults, an
// optional yaml file merged on top, then MPCW_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mpc-wallet/go-backend/internal/contracts"

	"gopkg.in/yaml.v3"
)

const (
	DefaultClientID        = "BBP_6GOu3EJGGws9yd8wY_xFT0jZIWmiLMpqrEMx36jlM61K9XRnNLnnvEtGpF-RhXJDGMJjL-I-wTi13RcBBOo"
	DefaultNetwork         = "testnet"
	DefaultUXMode          = "popup"
	DefaultLoginProvider   = "jwt"
	DefaultVerifierName    = "Web3Auth-Auth0-JWT"
	DefaultVerifier        = "web3auth-auth0-alam"
	DefaultLoginClientID   = "294QRkchfq2YaXUbPri7D6PH7xzHgQMT"
	DefaultDomain          = "https://shahbaz-torus.us.auth0.com"
	DefaultVerifierIDField = "sub"
	DefaultChainNamespace  = "eip155"
	DefaultChainID         = "0x1"

	DefaultRPCAddr        = "127.0.0.1:8797"
	DefaultChainRPC       = "http://127.0.0.1:8545"
	DefaultSendChainID    = int64(5)
	DefaultReceiptPoll    = 2 * time.Second
	DefaultTokenIssuer    = "mpc-wallet"
	DefaultTokenTTL       = time.Hour
	DefaultRateLimitRPS   = 20
	DefaultRateLimitBurst = 40
)

type Config struct {
	Auth   contracts.AuthConfig
	Login  contracts.ExtraLoginOptions
	Chain  ChainConfig
	Daemon DaemonConfig
}

type ChainConfig struct {
	RPCTarget           string
	SendChainID         int64
	ReceiptPollInterval time.Duration
}

type DaemonConfig struct {
	RPCAddr        string
	RPCToken       string
	DataDir        string
	StoreSecret    string
	TokenIssuer    string
	TokenTTL       time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	LogLevel       string
}

func Default() Config {
	return Config{
		Auth: contracts.AuthConfig{
			ClientID:      DefaultClientID,
			Network:       DefaultNetwork,
			UXMode:        DefaultUXMode,
			LoginProvider: DefaultLoginProvider,
			LoginConfig: contracts.LoginConfig{
				Name:        DefaultVerifierName,
				Verifier:    DefaultVerifier,
				TypeOfLogin: DefaultLoginProvider,
				ClientID:    DefaultLoginClientID,
			},
			ChainNamespace: DefaultChainNamespace,
			ChainID:        DefaultChainID,
		},
		Login: contracts.ExtraLoginOptions{
			Domain:          DefaultDomain,
			VerifierIDField: DefaultVerifierIDField,
		},
		Chain: ChainConfig{
			RPCTarget:           DefaultChainRPC,
			SendChainID:         DefaultSendChainID,
			ReceiptPollInterval: DefaultReceiptPoll,
		},
		Daemon: DaemonConfig{
			RPCAddr:        DefaultRPCAddr,
			TokenIssuer:    DefaultTokenIssuer,
			TokenTTL:       DefaultTokenTTL,
			RateLimitRPS:   DefaultRateLimitRPS,
			RateLimitBurst: DefaultRateLimitBurst,
			LogLevel:       "info",
		},
	}
}

type fileConfig struct {
	Auth   fileAuth   `yaml:"auth"`
	Chain  fileChain  `yaml:"chain"`
	Daemon fileDaemon `yaml:"daemon"`
}

type fileAuth struct {
	ClientID        string    `yaml:"clientId"`
	Network         string    `yaml:"network"`
	UXMode          string    `yaml:"uxMode"`
	LoginProvider   string    `yaml:"loginProvider"`
	LoginConfig     fileLogin `yaml:"loginConfig"`
	Domain          string    `yaml:"domain"`
	VerifierIDField string    `yaml:"verifierIdField"`
}

type fileLogin struct {
	Name        string `yaml:"name"`
	Verifier    string `yaml:"verifier"`
	TypeOfLogin string `yaml:"typeOfLogin"`
	ClientID    string `yaml:"clientId"`
}

type fileChain struct {
	Namespace           string        `yaml:"namespace"`
	ChainID             string        `yaml:"chainId"`
	RPCTarget           string        `yaml:"rpcTarget"`
	SendChainID         int64         `yaml:"sendChainId"`
	ReceiptPollInterval time.Duration `yaml:"receiptPollInterval"`
}

type fileDaemon struct {
	RPCAddr        string        `yaml:"rpcAddr"`
	DataDir        string        `yaml:"dataDir"`
	TokenIssuer    string        `yaml:"tokenIssuer"`
	TokenTTL       time.Duration `yaml:"tokenTTL"`
	RateLimitRPS   float64       `yaml:"rateLimitRPS"`
	RateLimitBurst int           `yaml:"rateLimitBurst"`
	LogLevel       string        `yaml:"logLevel"`
}

// LoadFromPath reads configPath, or the first default location that exists
// when configPath is empty. An explicit path that cannot be read or parsed
// is an error; missing default files are not.
func LoadFromPath(configPath string) (Config, error) {
	cfg := Default()

	candidates := []string{configPath}
	explicit := strings.TrimSpace(configPath) != ""
	if !explicit {
		candidates = []string{"go-backend/configs/config.yaml", "configs/config.yaml"}
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if explicit {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			continue
		}
		var parsed fileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		merge(&cfg, parsed)
		break
	}
	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

func merge(dst *Config, src fileConfig) {
	setString(&dst.Auth.ClientID, src.Auth.ClientID)
	setString(&dst.Auth.Network, src.Auth.Network)
	setString(&dst.Auth.UXMode, src.Auth.UXMode)
	setString(&dst.Auth.LoginProvider, src.Auth.LoginProvider)
	setString(&dst.Auth.LoginConfig.Name, src.Auth.LoginConfig.Name)
	setString(&dst.Auth.LoginConfig.Verifier, src.Auth.LoginConfig.Verifier)
	setString(&dst.Auth.LoginConfig.TypeOfLogin, src.Auth.LoginConfig.TypeOfLogin)
	setString(&dst.Auth.LoginConfig.ClientID, src.Auth.LoginConfig.ClientID)
	setString(&dst.Login.Domain, src.Auth.Domain)
	setString(&dst.Login.VerifierIDField, src.Auth.VerifierIDField)

	setString(&dst.Auth.ChainNamespace, src.Chain.Namespace)
	setString(&dst.Auth.ChainID, src.Chain.ChainID)
	setString(&dst.Chain.RPCTarget, src.Chain.RPCTarget)
	if src.Chain.SendChainID != 0 {
		dst.Chain.SendChainID = src.Chain.SendChainID
	}
	if src.Chain.ReceiptPollInterval != 0 {
		dst.Chain.ReceiptPollInterval = src.Chain.ReceiptPollInterval
	}

	setString(&dst.Daemon.RPCAddr, src.Daemon.RPCAddr)
	setString(&dst.Daemon.DataDir, src.Daemon.DataDir)
	setString(&dst.Daemon.TokenIssuer, src.Daemon.TokenIssuer)
	setString(&dst.Daemon.LogLevel, src.Daemon.LogLevel)
	if src.Daemon.TokenTTL != 0 {
		dst.Daemon.TokenTTL = src.Daemon.TokenTTL
	}
	if src.Daemon.RateLimitRPS != 0 {
		dst.Daemon.RateLimitRPS = src.Daemon.RateLimitRPS
	}
	if src.Daemon.RateLimitBurst != 0 {
		dst.Daemon.RateLimitBurst = src.Daemon.RateLimitBurst
	}
}

// ApplyEnvOverrides applies MPCW_* variables. Secrets are only read from the
// environment, never from the yaml file.
func ApplyEnvOverrides(cfg *Config) {
	setString(&cfg.Auth.ClientID, os.Getenv("MPCW_CLIENT_ID"))
	setString(&cfg.Auth.Network, os.Getenv("MPCW_NETWORK"))
	setString(&cfg.Auth.LoginConfig.Verifier, os.Getenv("MPCW_VERIFIER"))
	setString(&cfg.Login.Domain, os.Getenv("MPCW_LOGIN_DOMAIN"))
	setString(&cfg.Chain.RPCTarget, os.Getenv("MPCW_CHAIN_RPC"))
	setString(&cfg.Daemon.RPCAddr, os.Getenv("MPCW_RPC_ADDR"))
	setString(&cfg.Daemon.RPCToken, os.Getenv("MPCW_RPC_TOKEN"))
	setString(&cfg.Daemon.DataDir, os.Getenv("MPCW_DATA_DIR"))
	setString(&cfg.Daemon.StoreSecret, os.Getenv("MPCW_STORE_SECRET"))
	setString(&cfg.Daemon.LogLevel, os.Getenv("MPCW_LOG_LEVEL"))

	if raw := strings.TrimSpace(os.Getenv("MPCW_SEND_CHAIN_ID")); raw != "" {
		if v, err := strconv.ParseInt(raw, 0, 64); err == nil && v > 0 {
			cfg.Chain.SendChainID = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("MPCW_RECEIPT_POLL_INTERVAL")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.Chain.ReceiptPollInterval = d
		}
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
