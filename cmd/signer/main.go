package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shivarthu/shivarthu-signer/internal/config"
	"github.com/shivarthu/shivarthu-signer/internal/core/application"
	"github.com/shivarthu/shivarthu-signer/internal/infrastructure/chain/sidecar"
	"github.com/shivarthu/shivarthu-signer/internal/infrastructure/chain/substrate"
	postgresdb "github.com/shivarthu/shivarthu-signer/internal/infrastructure/storage/db/pg"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"

	datadirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "data directory of the signer, must not be in use by a running signerd",
	}
	nodeURLFlag = &cli.StringFlag{
		Name:  "node-url",
		Usage: "websocket endpoint of the chain node",
	}
)

func main() {
	app := cli.NewApp()

	app.Version = version
	app.Name = "signer"
	app.Usage = "Command line interface to manage Shivarthu accounts and sign transactions"
	app.Flags = []cli.Flag{datadirFlag, nodeURLFlag}
	app.Commands = append(
		app.Commands,
		&genseed,
		&account,
		&transfer,
		&remark,
		&call,
	)

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// getAppConfig loads the config, letting the global flags override the env,
// and returns the application services built on it.
func getAppConfig(ctx *cli.Context) (*application.Config, func(), error) {
	overrides := make(map[string]string)
	if datadir := ctx.String(datadirFlag.Name); len(datadir) > 0 {
		overrides[config.DatadirKey] = datadir
	}
	if nodeURL := ctx.String(nodeURLFlag.Name); len(nodeURL) > 0 {
		overrides[config.NodeURLKey] = nodeURL
	}
	if err := config.InitConfig(overrides); err != nil {
		return nil, nil, err
	}
	log.SetLevel(config.GetLogLevel())

	events, err := sidecar.NewFetcher(sidecar.Opts{
		BaseURL:   config.GetString(config.EventsURLKey),
		RateLimit: config.GetInt(config.EventsRateLimitKey),
	})
	if err != nil {
		return nil, nil, err
	}

	appConfig := &application.Config{
		DBType:   config.GetDbType(),
		DBConfig: dbConfig(),
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
		return nil, nil, err
	}

	cleanup := func() {
		appConfig.SignerService().Close()
		appConfig.RepoManager().Close()
	}
	return appConfig, cleanup, nil
}

func printJSON(resp interface{}) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}
	fmt.Println(string(data))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[signer] %v\n", err)
	os.Exit(1)
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
