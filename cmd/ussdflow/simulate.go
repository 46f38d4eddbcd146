package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/ussdflow"
	"github.com/aretw0/ussdflow/internal/cli"
	"github.com/aretw0/ussdflow/internal/flows"
	"github.com/aretw0/ussdflow/internal/presentation/tui"
	"github.com/aretw0/ussdflow/pkg/adapters/memory"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// demoRecipient is a registered account the simulator can send money to.
const demoRecipient = "0712345678"

// screenNotifier shows SMS receipts on the simulated handset.
type screenNotifier struct {
	screen *tui.Screen
}

func (n screenNotifier) Notify(_ context.Context, phone, text string) error {
	n.screen.Info("SMS to %s: %s", phone, text)
	return nil
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Dial the menu from the terminal",
	Long: `Runs the flows in-process against an in-memory store and a demo wallet,
showing each reply as the gateway would frame it (CON or END).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		phone, _ := cmd.Flags().GetString("phone")
		pin, _ := cmd.Flags().GetString("pin")
		balance, _ := cmd.Flags().GetFloat64("balance")
		latestOnly, _ := cmd.Flags().GetBool("latest-only")

		out := cmd.OutOrStdout()
		screen := tui.NewScreen(out)
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			tui.PrintBanner(out, ussdflow.Version)
		}

		wallet := memory.NewWallet()
		wallet.Open(phone, balance, flows.HashPIN(phone, pin))
		wallet.Open(demoRecipient, 0, "")

		opts, err := cli.ServiceOptions(cfg, logger)
		if err != nil {
			return err
		}
		opts = append(opts,
			ussdflow.WithWallet(wallet),
			ussdflow.WithNotifier(screenNotifier{screen: screen}),
		)
		svc, err := ussdflow.New(opts...)
		if err != nil {
			return fmt.Errorf("init service: %w", err)
		}

		screen.Info("wallet %s holds KES %.2f (PIN %s); %s is registered", phone, balance, pin, demoRecipient)
		sim := &cli.Simulator{
			Handler:    svc,
			Screen:     screen,
			In:         cmd.InOrStdin(),
			Phone:      phone,
			Accumulate: !latestOnly,
		}
		return sim.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().String("phone", "+254700000001", "Caller MSISDN")
	simulateCmd.Flags().String("pin", "1234", "PIN of the demo wallet")
	simulateCmd.Flags().Float64("balance", 1000, "Opening balance of the demo wallet")
	simulateCmd.Flags().Bool("latest-only", false, "Send only the newest token instead of accumulated input")
}
