package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/layer-3/renown"
	"github.com/layer-3/renown/adapters/signer"
	"github.com/layer-3/renown/adapters/tokenizer"
	"github.com/layer-3/renown/core"
	"github.com/layer-3/renown/internal/config"
	"github.com/layer-3/renown/internal/logging"
	"github.com/layer-3/renown/ports"
	"github.com/layer-3/renown/service"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// options are the flags shared by every command.
type options struct {
	server     string
	configPath string
	cachePath  string
	logLevel   string

	// wallet
	key        string
	keystore   string
	account    string
	chainID    int64
	passphrase string
}

func (o *options) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.server, "server", envOr("RENOWN_SERVER", "http://localhost:9000"), "renown server URL (env RENOWN_SERVER)")
	fs.StringVar(&o.configPath, "config", "renown.toml", "TOML config for issuance defaults")
	fs.StringVar(&o.cachePath, "cache", envOr("RENOWN_CACHE", renown.DefaultCachePath()), "credential cache file (env RENOWN_CACHE)")
	fs.StringVar(&o.logLevel, "log-level", envOr("RENOWN_LOG_LEVEL", "warn"), "log level")
}

func (o *options) registerWallet(fs *pflag.FlagSet) {
	fs.StringVar(&o.key, "key", os.Getenv("RENOWN_KEY"), "hex private key (env RENOWN_KEY)")
	fs.StringVar(&o.keystore, "keystore", os.Getenv("RENOWN_KEYSTORE"), "keystore directory (env RENOWN_KEYSTORE)")
	fs.StringVar(&o.account, "account", "", "keystore account address, defaults to the first")
	fs.Int64Var(&o.chainID, "chain-id", envInt("RENOWN_CHAIN_ID", 1), "EVM chain id")
}

func (o *options) logger() zerolog.Logger {
	return logging.New(o.logLevel, "console", os.Stderr)
}

func (o *options) client() *renown.HTTPClient {
	return renown.NewHTTPClient(o.server, renown.WithClientLogger(o.logger()))
}

func (o *options) cache() renown.TokenCache {
	return renown.NewFileTokenCache(o.cachePath)
}

// wallet opens the keystore when one is configured, else the raw key.
func (o *options) wallet() (ports.Wallet, error) {
	switch {
	case o.keystore != "":
		pass, err := o.readPassphrase()
		if err != nil {
			return nil, err
		}
		return signer.OpenKeystoreWallet(o.keystore, o.account, pass)
	case o.key != "":
		return signer.KeyWalletFromHex(o.key)
	default:
		return nil, fmt.Errorf("%w: pass --key or --keystore", core.ErrSignerUnavailable)
	}
}

func (o *options) readPassphrase() (string, error) {
	if pass := os.Getenv("RENOWN_PASSPHRASE"); pass != "" {
		return pass, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal available for passphrase prompt (set RENOWN_PASSPHRASE)")
	}

	fmt.Fprint(os.Stderr, "Keystore passphrase: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

// issuer builds an issuer with the audience and lifetime from the config.
func (o *options) issuer() (*service.Issuer, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	return service.NewIssuer(
		tokenizer.NewCodec(),
		service.WithAudience(cfg.Credential.Audience),
		service.WithCredentialTTL(cfg.Credential.GetTTL()),
	), nil
}

// controller wires a controller around the configured wallet. Commands that
// never sign pass withWallet=false.
func (o *options) controller(withWallet bool) (*renown.Controller, error) {
	issuer, err := o.issuer()
	if err != nil {
		return nil, err
	}

	var s ports.Signer = signer.NewAdapter(nil)
	if withWallet {
		w, err := o.wallet()
		if err != nil {
			return nil, err
		}
		s = signer.NewAdapter(w)
	}

	controllerOpts := []renown.ControllerOption{
		renown.WithClient(o.client()),
		renown.WithCache(o.cache()),
		renown.WithLogger(o.logger()),
	}
	if o.chainID > 0 {
		controllerOpts = append(controllerOpts, renown.WithChainID(o.chainID))
	}
	return renown.NewController(issuer, s, controllerOpts...), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
