package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shivarthu/shivarthu-signer/internal/config"
	"github.com/shivarthu/shivarthu-signer/pkg/calls"
	"github.com/urfave/cli/v2"
)

var genseed = cli.Command{
	Name:  "genseed",
	Usage: "generate a mnemonic seed, the seed is not stored",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "words",
			Usage: "number of words, one of 12, 15, 18, 21, 24",
			Value: 12,
		},
	},
	Action: genSeedAction,
}

var passwordFlag = &cli.StringFlag{
	Name:     "password",
	Usage:    "the password of the account",
	EnvVars:  []string{"SIGNER_PASSWORD"},
	Required: true,
}

var account = cli.Command{
	Name:  "account",
	Usage: "manage the stored accounts",
	Subcommands: []*cli.Command{
		{
			Name:  "add",
			Usage: "encrypt a mnemonic with a password and store it",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "name",
					Usage: "a display name for the account",
				},
				&cli.StringFlag{
					Name:     "mnemonic",
					Usage:    "the space separated seed phrase",
					EnvVars:  []string{"SIGNER_MNEMONIC"},
					Required: true,
				},
				passwordFlag,
			},
			Action: addAccountAction,
		},
		{
			Name:   "list",
			Usage:  "list the stored accounts",
			Action: listAccountsAction,
		},
		{
			Name:      "remove",
			Usage:     "delete a stored account",
			ArgsUsage: "<account address>",
			Action:    removeAccountAction,
		},
		{
			Name:  "export",
			Usage: "export the encrypted accounts",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "out",
					Usage: "the file to write to, stdout if not set",
				},
			},
			Action: exportAccountsAction,
		},
		{
			Name:      "import",
			Usage:     "import the encrypted accounts of an export file",
			ArgsUsage: "<file>",
			Action:    importAccountsAction,
		},
		{
			Name:      "balance",
			Usage:     "show the balance of an account, stored or not",
			ArgsUsage: "<account address>",
			Action:    balanceAction,
		},
	},
}

func genSeedAction(ctx *cli.Context) error {
	appConfig, cleanup, err := getAppConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	mnemonic, err := appConfig.AccountService().GenSeed(
		context.Background(), ctx.Int("words"),
	)
	if err != nil {
		return err
	}

	fmt.Println(mnemonic)
	return nil
}

func addAccountAction(ctx *cli.Context) error {
	appConfig, cleanup, err := getAppConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	password := ctx.String(passwordFlag.Name)
	account, err := appConfig.AccountService().AddAccount(
		context.Background(), ctx.String("name"), ctx.String("mnemonic"),
		password, password,
	)
	if err != nil {
		return err
	}

	printJSON(map[string]string{
		"name":            account.Name,
		"account_address": account.AccountID,
	})
	return nil
}

func listAccountsAction(ctx *cli.Context) error {
	appConfig, cleanup, err := getAppConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	accounts, err := appConfig.AccountService().ListAccounts(context.Background())
	if err != nil {
		return err
	}

	list := make([]map[string]string, 0, len(accounts))
	for _, a := range accounts {
		list = append(list, map[string]string{
			"name":            a.Name,
			"account_address": a.AccountID,
		})
	}
	printJSON(list)
	return nil
}

func removeAccountAction(ctx *cli.Context) error {
	accountID := strings.TrimSpace(ctx.Args().First())
	if len(accountID) <= 0 {
		return fmt.Errorf("missing account address")
	}

	appConfig, cleanup, err := getAppConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := appConfig.AccountService().RemoveAccount(
		context.Background(), accountID,
	); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("account %s removed\n", accountID)
	return nil
}

func exportAccountsAction(ctx *cli.Context) error {
	appConfig, cleanup, err := getAppConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	data, err := appConfig.AccountService().ExportAccounts(context.Background())
	if err != nil {
		return err
	}

	out := ctx.String("out")
	if len(out) <= 0 {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(out, data, 0600); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}
	return nil
}

func importAccountsAction(ctx *cli.Context) error {
	path := strings.TrimSpace(ctx.Args().First())
	if len(path) <= 0 {
		return fmt.Errorf("missing file to import")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	appConfig, cleanup, err := getAppConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	count, err := appConfig.AccountService().ImportAccounts(
		context.Background(), data,
	)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("imported %d accounts\n", count)
	return nil
}

func balanceAction(ctx *cli.Context) error {
	accountID := strings.TrimSpace(ctx.Args().First())
	if len(accountID) <= 0 {
		return fmt.Errorf("missing account address")
	}

	appConfig, cleanup, err := getAppConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	balance, err := appConfig.SignerService().Balance(
		context.Background(), accountID,
	)
	if err != nil {
		return err
	}

	decimals := uint8(config.GetInt(config.TokenDecimalsKey))
	printJSON(map[string]interface{}{
		"account_address": accountID,
		"nonce":           balance.Nonce,
		"free":            calls.FormatAmount(balance.Free, decimals),
		"reserved":        calls.FormatAmount(balance.Reserved, decimals),
		"frozen":          calls.FormatAmount(balance.Frozen, decimals),
		"transferable":    calls.FormatAmount(balance.Transferable(), decimals),
	})
	return nil
}
