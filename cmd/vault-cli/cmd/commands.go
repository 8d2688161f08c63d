package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oshokin/deadman-vault/internal/service/client"
)

func newCreateCommand() *cobra.Command {
	var (
		beneficiaries []string
		years         int
		epitaph       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a vault owned by the token subject.",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(ctx context.Context, runner *client.Runner, _ []string) error {
			return runner.Create(ctx, beneficiaries, years, epitaph)
		}),
	}

	cmd.Flags().StringSliceVarP(&beneficiaries, "beneficiary", "b", nil, "beneficiary address (repeatable)")
	cmd.Flags().IntVarP(&years, "years", "y", 1, "unlock period in years")
	cmd.Flags().StringVarP(&epitaph, "epitaph", "e", "", "message published with the final payout")

	return cmd
}

func newDepositCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <vault> <amount>",
		Short: "Deposit value into a vault.",
		Args:  cobra.ExactArgs(2), //nolint:mnd // Vault and amount.
		RunE: withRunner(func(ctx context.Context, runner *client.Runner, args []string) error {
			return runner.Deposit(ctx, args[0], args[1])
		}),
	}
}

func newTransferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <vault> <to> <amount>",
		Short: "Pay value from a vault to a recipient (owner only).",
		Args:  cobra.ExactArgs(3), //nolint:mnd // Vault, recipient and amount.
		RunE: withRunner(func(ctx context.Context, runner *client.Runner, args []string) error {
			return runner.Transfer(ctx, args[0], args[1], args[2])
		}),
	}
}

func newWithdrawCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <vault> <amount>",
		Short: "Pay value from a vault to its owner (owner only).",
		Args:  cobra.ExactArgs(2), //nolint:mnd // Vault and amount.
		RunE: withRunner(func(ctx context.Context, runner *client.Runner, args []string) error {
			return runner.Withdraw(ctx, args[0], args[1])
		}),
	}
}

func newBeneficiaryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "beneficiary",
		Short: "Manage the beneficiaries of a vault (owner only).",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <vault> <address>",
			Short: "Register a beneficiary.",
			Args:  cobra.ExactArgs(2), //nolint:mnd // Vault and beneficiary.
			RunE: withRunner(func(ctx context.Context, runner *client.Runner, args []string) error {
				return runner.AddBeneficiary(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "remove <vault> <address>",
			Short: "Unregister a beneficiary.",
			Args:  cobra.ExactArgs(2), //nolint:mnd // Vault and beneficiary.
			RunE: withRunner(func(ctx context.Context, runner *client.Runner, args []string) error {
				return runner.RemoveBeneficiary(ctx, args[0], args[1])
			}),
		},
	)

	return cmd
}

func newHeartbeatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat <vault>",
		Short: "Refresh the activity timer of a vault once (owner only).",
		Args:  cobra.ExactArgs(1),
		RunE: withRunner(func(ctx context.Context, runner *client.Runner, args []string) error {
			return runner.Heartbeat(ctx, args[0])
		}),
	}
}

func newUnlockPeriodCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock-period <vault> <years>",
		Short: "Change the inactivity period of a vault (owner only).",
		Args:  cobra.ExactArgs(2), //nolint:mnd // Vault and years.
		RunE: withRunner(func(ctx context.Context, runner *client.Runner, args []string) error {
			years, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("parse years: %w", err)
			}

			return runner.UnlockPeriod(ctx, args[0], years)
		}),
	}
}

func newPayoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "payout <vault> [target]",
		Short: "Claim the whole balance and seal the vault (beneficiary only).",
		Args:  cobra.RangeArgs(1, 2), //nolint:mnd // Vault and optional target.
		RunE: withRunner(func(ctx context.Context, runner *client.Runner, args []string) error {
			var target string
			if len(args) > 1 {
				target = args[1]
			}

			return runner.Payout(ctx, args[0], target)
		}),
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [vault]",
		Short: "Show one vault, or list all vaults.",
		Args:  cobra.MaximumNArgs(1),
		RunE: withRunner(func(ctx context.Context, runner *client.Runner, args []string) error {
			var vault string
			if len(args) > 0 {
				vault = args[0]
			}

			return runner.Show(ctx, vault)
		}),
	}
}

func newRecordsCommand() *cobra.Command {
	var (
		afterSeq uint64
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "records <vault>",
		Short: "List the record journal of a vault.",
		Args:  cobra.ExactArgs(1),
		RunE: withRunner(func(ctx context.Context, runner *client.Runner, args []string) error {
			return runner.Records(ctx, args[0], afterSeq, limit)
		}),
	}

	cmd.Flags().Uint64Var(&afterSeq, "after", 0, "only records with a greater sequence number")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records (server default when 0)")

	return cmd
}
