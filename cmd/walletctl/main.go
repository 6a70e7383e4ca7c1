// walletctl is a command-line client for a wallet daemon's RPC port.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"walletrpc/config"
	"walletrpc/discovery"
	"walletrpc/middleware"
	"walletrpc/rpc"
	"walletrpc/wallet"
)

var (
	flagConfig   string
	flagEndpoint string
	flagUser     string
	flagPassword string
	flagVerbose  bool
)

func main() {
	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "talk to a wallet daemon over its RPC port",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to config.toml")
	root.PersistentFlags().StringVarP(&flagEndpoint, "endpoint", "e", "", "daemon address (host:port), overrides config")
	root.PersistentFlags().StringVar(&flagUser, "user", "", "login username")
	root.PersistentFlags().StringVar(&flagPassword, "password", "", "login password")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log every call")

	root.AddCommand(
		balanceCmd(),
		transferCmd(),
		validateCmd(),
		blockCmd(),
		txCmd(),
		importWalletCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "walletctl:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}
	cfg := &config.Config{Endpoint: flagEndpoint}
	if flagEndpoint == "" {
		return nil, fmt.Errorf("no --endpoint and no --config given")
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		var err error
		lvl, err = zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
	}
	if flagVerbose {
		lvl = zapcore.DebugLevel
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// resolveEndpoint returns the address to dial, consulting etcd when the
// config asks for discovery.
func resolveEndpoint(ctx context.Context, cfg *config.Config, log *zap.Logger) (string, error) {
	if flagEndpoint != "" {
		return flagEndpoint, nil
	}
	if cfg.Endpoint != "" {
		return cfg.Endpoint, nil
	}

	reg, err := discovery.NewEtcdRegistry(cfg.Discovery.Endpoints, log)
	if err != nil {
		return "", fmt.Errorf("connect discovery: %w", err)
	}
	defer reg.Close()

	endpoints, err := reg.Discover(ctx, cfg.Discovery.Service)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", cfg.Discovery.Service, err)
	}

	var picker discovery.Picker = &discovery.RoundRobin{}
	if cfg.Discovery.Strategy == "weighted" {
		picker = &discovery.WeightedRandom{}
	}
	ep, err := picker.Pick(endpoints)
	if err != nil {
		return "", fmt.Errorf("pick %s endpoint: %w", cfg.Discovery.Service, err)
	}
	return ep.Addr, nil
}

// dial connects, and logs in when credentials are configured.
func dial(ctx context.Context) (*wallet.Client, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	addr, err := resolveEndpoint(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	opts := []rpc.Option{
		rpc.WithLogger(log),
		rpc.WithMiddleware(
			middleware.Logging(log),
			middleware.Timeout(30*time.Second),
		),
	}
	if cfg.DialTimeoutMS > 0 {
		opts = append(opts, rpc.WithDialTimeout(time.Duration(cfg.DialTimeoutMS)*time.Millisecond))
	}

	client, err := wallet.Dial(addr, opts...)
	if err != nil {
		return nil, nil, err
	}

	user, pass := cfg.Auth.Username, cfg.Auth.Password
	if flagUser != "" {
		user, pass = flagUser, flagPassword
	}
	if user != "" {
		ok, err := client.Login(ctx, user, pass)
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("login: %w", err)
		}
		if !ok {
			client.Close()
			return nil, nil, fmt.Errorf("login rejected")
		}
	}
	return client, log, nil
}
