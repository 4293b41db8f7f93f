package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shivarthu/shivarthu-signer/internal/config"
	"github.com/shivarthu/shivarthu-signer/internal/core/domain"
	"github.com/shivarthu/shivarthu-signer/pkg/calls"
	"github.com/urfave/cli/v2"
)

var fromFlag = &cli.StringFlag{
	Name:     "from",
	Usage:    "the address of the signing account",
	Required: true,
}

var transfer = cli.Command{
	Name:  "transfer",
	Usage: "sign and submit a balance transfer and wait for its finalization",
	Flags: []cli.Flag{
		fromFlag,
		passwordFlag,
		&cli.StringFlag{
			Name:     "dest",
			Usage:    "the address of the recipient",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "amount",
			Usage:    "the amount of tokens, eg. 1.5",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "allow-death",
			Usage: "allow the sender account to be reaped",
		},
	},
	Action: transferAction,
}

var remark = cli.Command{
	Name:  "remark",
	Usage: "sign and submit a system remark and wait for its finalization",
	Flags: []cli.Flag{
		fromFlag,
		passwordFlag,
		&cli.StringFlag{
			Name:     "text",
			Usage:    "the remark",
			Required: true,
		},
	},
	Action: remarkAction,
}

var call = cli.Command{
	Name:  "call",
	Usage: "sign and submit a hex encoded call and wait for its finalization",
	Flags: []cli.Flag{
		fromFlag,
		passwordFlag,
		&cli.StringFlag{
			Name:     "data",
			Usage:    "the SCALE encoded call in hex format",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "label",
			Usage: "a human readable description of the call",
		},
	},
	Action: callAction,
}

func transferAction(ctx *cli.Context) error {
	return signAndWatch(ctx, func() (domain.Payload, error) {
		return calls.NewTransfer(calls.TransferOpts{
			Dest:        ctx.String("dest"),
			Amount:      ctx.String("amount"),
			Decimals:    uint8(config.GetInt(config.TokenDecimalsKey)),
			PalletIndex: uint8(config.GetInt(config.BalancesPalletIndexKey)),
			KeepAlive: config.GetBool(config.KeepAliveTransferKey) &&
				!ctx.Bool("allow-death"),
		})
	})
}

func remarkAction(ctx *cli.Context) error {
	return signAndWatch(ctx, func() (domain.Payload, error) {
		return calls.NewRemark(ctx.String("text"))
	})
}

func callAction(ctx *cli.Context) error {
	return signAndWatch(ctx, func() (domain.Payload, error) {
		return calls.NewRawCall(ctx.String("data"), ctx.String("label"))
	})
}

// signAndWatch unlocks the session with the given account, submits the
// payload and prints the status log until the transaction terminates.
// The payload is built after the config is loaded.
func signAndWatch(
	ctx *cli.Context, makePayload func() (domain.Payload, error),
) error {
	appConfig, cleanup, err := getAppConfig(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	payload, err := makePayload()
	if err != nil {
		return err
	}

	c, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT, os.Interrupt,
	)
	defer cancel()

	if err := appConfig.UnlockerService().Unlock(
		c, ctx.String(fromFlag.Name), ctx.String(passwordFlag.Name),
	); err != nil {
		return err
	}
	defer appConfig.UnlockerService().Lock(c)

	signer := appConfig.SignerService()
	tx, err := signer.Submit(c, payload)
	if err != nil {
		return err
	}
	fmt.Println(tx.Info().Description)

	updates, stop := tx.Subscribe()
	defer stop()

	printed := 0
	var last domain.TransactionInfo
	for {
		select {
		case info, ok := <-updates:
			if !ok {
				printJSON(last)
				if last.State == domain.TxStateFailed.String() {
					return fmt.Errorf("transaction failed: %s", last.Reason)
				}
				return nil
			}
			for _, status := range info.StatusLog[printed:] {
				fmt.Printf("  %s\n", status)
			}
			printed = len(info.StatusLog)
			last = info
		case <-c.Done():
			if err := signer.Discard(tx.ID); err != nil {
				return err
			}
			<-tx.Done()
			return fmt.Errorf("interrupted, transaction discarded")
		}
	}
}
