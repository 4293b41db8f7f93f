package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/shivarthu/shivarthu-signer/internal/config"
	"github.com/shivarthu/shivarthu-signer/internal/core/application"
	"github.com/shivarthu/shivarthu-signer/internal/infrastructure/chain/sidecar"
	"github.com/shivarthu/shivarthu-signer/internal/infrastructure/chain/substrate"
	"github.com/shivarthu/shivarthu-signer/internal/infrastructure/pubsub"
	postgresdb "github.com/shivarthu/shivarthu-signer/internal/infrastructure/storage/db/pg"
	httpinterface "github.com/shivarthu/shivarthu-signer/internal/interfaces/http"
	"github.com/shivarthu/shivarthu-signer/pkg/apitoken"
	"github.com/shivarthu/shivarthu-signer/pkg/stats"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	app = &cobra.Command{
		Use:           "signerd",
		Short:         "shivarthu signer daemon",
		Long:          "signerd keeps the encrypted accounts of the Shivarthu client, signs and submits extrinsics and tracks them until finalization",
		Version:       formatVersion(),
		RunE:          action,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// flags overriding the env config, bound by name to the config keys.
	flagKeys = map[string]string{
		"datadir":        config.DatadirKey,
		"log-level":      config.LogLevelKey,
		"node-url":       config.NodeURLKey,
		"events-url":     config.EventsURLKey,
		"key-scheme":     config.KeySchemeKey,
		"listen-address": config.HTTPListeningAddressKey,
		"port":           config.HTTPListeningPortKey,
		"tx-timeout":     config.TxTimeoutKey,
		"tx-retention":   config.TxRetentionKey,
		"in-memory":      config.InMemoryDBKey,
		"db-type":        config.DBTypeKey,
	}
)

func init() {
	flags := app.Flags()
	flags.String("datadir", "", "data directory of the daemon")
	flags.Int("log-level", 4, "log level, from 0 (panic) to 6 (trace)")
	flags.String("node-url", "", "websocket endpoint of the chain node")
	flags.String("events-url", "", "url of the Substrate API Sidecar")
	flags.String("key-scheme", "", "signature scheme of the accounts, one of sr25519, ed25519, ecdsa")
	flags.String("listen-address", "", "listening IP address of the HTTP interface, loopback by default")
	flags.Int("port", 0, "listening port of the HTTP interface")
	flags.Duration("tx-timeout", 0, "max duration of a transaction, 0 for none")
	flags.Duration("tx-retention", 0, "how long terminated transactions are kept, 0 for ever")
	flags.Bool("in-memory", false, "do not persist accounts and webhooks")
	flags.String("db-type", "", "account store backend, one of badger, postgres")
}

func main() {
	if err := app.Execute(); err != nil {
		log.Fatal(err)
	}
}

func action(cmd *cobra.Command, _ []string) error {
	overrides := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			overrides[key] = f.Value.String()
		}
	})
	if err := config.InitConfig(overrides); err != nil {
		return err
	}

	log.SetLevel(config.GetLogLevel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if interval := config.GetDuration(config.StatsIntervalKey); interval > 0 {
		stats.EnableMemoryStatistics(ctx, interval)
	}

	events, err := sidecar.NewFetcher(sidecar.Opts{
		BaseURL:   config.GetString(config.EventsURLKey),
		RateLimit: config.GetInt(config.EventsRateLimitKey),
	})
	if err != nil {
		return err
	}

	pubsubSvc, err := pubsub.NewService(
		config.GetPubSubDir(), config.GetDuration(config.WebhookTimeoutKey),
	)
	if err != nil {
		return err
	}

	appConfig := &application.Config{
		DBType:   config.GetDbType(),
		DBConfig: dbConfig(),
		PubSub:   pubsubSvc,
		ChainClient: substrate.NewClient(substrate.ClientOpts{
			Events:                events,
			SS58Prefix:            config.GetSS58Prefix(),
			MetadataHashExtension: config.GetBool(config.MetadataHashExtensionKey),
		}),
		NodeEndpoint: config.GetString(config.NodeURLKey),
		KeyScheme:    config.GetKeyScheme(),
		SS58Prefix:   config.GetSS58Prefix(),
		ScryptLogN:   config.GetInt(config.ScryptLogNKey),
		TxTimeout:    config.GetDuration(config.TxTimeoutKey),
		TxRetention:  config.GetDuration(config.TxRetentionKey),
	}
	if err := appConfig.Validate(); err != nil {
		pubsubSvc.Close()
		return err
	}
	defer appConfig.RepoManager().Close()
	defer appConfig.PubSubService().Close()
	defer appConfig.SignerService().Close()

	authority, err := apitoken.NewRandomAuthority()
	if err != nil {
		return err
	}
	token, err := authority.NewToken()
	if err != nil {
		return err
	}
	tokenFile := filepath.Join(config.GetDatadir(), apitoken.TokenFile)
	if err := apitoken.WriteTokenFile(tokenFile, token); err != nil {
		return fmt.Errorf("writing api token: %w", err)
	}
	defer os.Remove(tokenFile)
	log.Infof("api token written to %s", tokenFile)

	address := config.GetString(config.HTTPListeningAddressKey)
	if ip := net.ParseIP(address); address != "localhost" && !ip.IsLoopback() {
		log.Warnf("http interface exposed on non loopback address %s", address)
	}

	svc, err := httpinterface.NewService(httpinterface.ServiceOpts{
		Address:            address,
		Port:               config.GetInt(config.HTTPListeningPortKey),
		CORSAllowedOrigins: config.GetCORSAllowedOrigins(),
		Transfer: httpinterface.TransferDefaults{
			Decimals:    uint8(config.GetInt(config.TokenDecimalsKey)),
			PalletIndex: uint8(config.GetInt(config.BalancesPalletIndexKey)),
			KeepAlive:   config.GetBool(config.KeepAliveTransferKey),
		},
		Auth:            authority,
		AccountService:  appConfig.AccountService(),
		UnlockerService: appConfig.UnlockerService(),
		SignerService:   appConfig.SignerService(),
		PubSubService:   appConfig.PubSubService(),
	})
	if err != nil {
		return err
	}

	log.Infof(
		"signer started with %s accounts on node %s",
		config.GetKeyScheme(), config.GetString(config.NodeURLKey),
	)
	if err := svc.Start(); err != nil {
		return err
	}
	defer svc.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, os.Interrupt)
	<-sigChan

	log.Info("shutting down signer")
	return nil
}

func formatVersion() string {
	return fmt.Sprintf(
		"Version: %s\nCommit: %s\nDate: %s",
		version, commit, date,
	)
}

// dbConfig returns the config of the selected account store backend.
func dbConfig() interface{} {
	if config.GetDbType() == config.DbTypePostgres {
		return postgresdb.DbConfig{
			DataSourceURL: config.GetString(config.PgDataSourceURLKey),
		}
	}
	return config.GetDbDir()
}
