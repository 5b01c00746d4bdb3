package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sigweihq/epicmint/pkg/chains/evm"
	"github.com/sigweihq/epicmint/pkg/config"
	"github.com/sigweihq/epicmint/pkg/constants"
	"github.com/sigweihq/epicmint/pkg/counter"
	"github.com/sigweihq/epicmint/pkg/notify"
	"github.com/sigweihq/epicmint/pkg/session"
	"github.com/sigweihq/epicmint/pkg/tui"
	"github.com/sigweihq/epicmint/pkg/utils"
	"github.com/sigweihq/epicmint/pkg/wallet"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	walletMode := flag.String("wallet", "", "Wallet mode override: none, key, keystore or bridge")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *walletMode != "" {
		cfg.Wallet.Mode = *walletMode
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, logger); err != nil {
		logger.Error("epicmint exited with error", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeLog()
		os.Exit(1)
	}
}

// newLogger writes JSON logs to the configured file so the screen stays clean
func newLogger(cfg config.LogConfig) (*slog.Logger, func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, func() { f.Close() }, nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var endpointOpts []evm.EndpointOption
	if cfg.DiscoverRPC {
		endpointOpts = append(endpointOpts, evm.WithChainlist(constants.ChainlistURL, nil))
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, constants.DialTimeout)
	client, endpoint, err := evm.DialNetwork(dialCtx, logger, cfg.Network, cfg.RPCEndpoints, endpointOpts...)
	dialCancel()
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", cfg.Network, err)
	}
	defer client.Close()
	if !utils.IsPushURL(endpoint) {
		logger.Info("endpoint has no push support; contract events will be polled", "endpoint", endpoint)
	}

	feed := tui.NewFeed()
	defer feed.Close()

	chainChanged := make(chan struct{}, 1)
	provider, closeWallet, err := openWallet(ctx, cfg, client, feed, chainChanged, logger)
	if err != nil {
		return err
	}
	defer closeWallet()

	gateway, err := evm.NewGateway(cfg.Network, cfg.Contract(), provider, client, logger)
	if err != nil {
		return err
	}

	mintCounter := counter.New(gateway, logger, counter.WithChangeHook(feed.CountChanged))
	subscriber := notify.NewSubscriber(gateway, mintCounter, feed, gateway.Network(), gateway.Contract().Hex(), logger)
	machine := session.NewMachine(gateway, mintCounter, subscriber, feed, gateway.Network(), logger,
		session.WithExpectedChainID(cfg.ExpectedChainID),
		session.WithChangeHook(feed.SessionChanged),
	)
	defer machine.Close()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-chainChanged:
				if err := machine.RefreshNetwork(ctx); err != nil {
					logger.Debug("network refresh skipped", "error", err)
				}
			}
		}
	}()

	model := tui.New(machine, feed, tui.Links{
		Collection:   utils.CollectionLocator(gateway.Network(), gateway.Contract().Hex()),
		SocialHandle: cfg.SocialHandle,
	}, logger)

	logger.Info("starting epicmint",
		"network", gateway.Network(),
		"contract", gateway.Contract().Hex(),
		"wallet", cfg.Wallet.Mode)

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// openWallet builds the configured wallet capability
// Mode none returns a nil provider, which the gateway reports as missing
func openWallet(ctx context.Context, cfg *config.Config, client *ethclient.Client, feed *tui.Feed, chainChanged chan<- struct{}, logger *slog.Logger) (wallet.Provider, func(), error) {
	noop := func() {}

	approve := wallet.Approver(feed.Approve)
	if cfg.Wallet.AutoApprove {
		approve = wallet.AutoApprove
	}
	var keyOpts []wallet.KeyOption
	if cfg.Wallet.PreAuthorized {
		keyOpts = append(keyOpts, wallet.WithPreAuthorized())
	}

	switch cfg.Wallet.Mode {
	case config.WalletKey:
		key, err := utils.ParsePrivateKey(cfg.Wallet.PrivateKey)
		if err != nil {
			return nil, noop, err
		}
		return keyWallet(key, client, approve, logger, keyOpts), noop, nil

	case config.WalletKeystore:
		key, err := wallet.LoadKeystore(cfg.Wallet.KeystorePath, cfg.Wallet.KeystorePassword)
		if err != nil {
			return nil, noop, err
		}
		return keyWallet(key, client, approve, logger, keyOpts), noop, nil

	case config.WalletBridge:
		bridge, err := wallet.DialBridge(ctx, cfg.Wallet.BridgeURL, logger, wallet.WithEventHandler(func(name string, params json.RawMessage) {
			logger.Info("wallet event", "event", name, "params", string(params))
			if name == "chainChanged" {
				select {
				case chainChanged <- struct{}{}:
				default:
				}
			}
		}))
		if err != nil {
			return nil, noop, err
		}
		go func() {
			<-bridge.Done()
			logger.Warn("wallet bridge disconnected")
		}()
		return bridge, func() { bridge.Close() }, nil

	default:
		return nil, noop, nil
	}
}

func keyWallet(key *ecdsa.PrivateKey, client *ethclient.Client, approve wallet.Approver, logger *slog.Logger, opts []wallet.KeyOption) *wallet.KeyProvider {
	provider := wallet.NewKeyProvider(key, client, approve, logger, opts...)
	logger.Info("local wallet loaded", "address", provider.Address().Hex())
	return provider
}
