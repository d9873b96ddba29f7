package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pgwallah/pgwallah-backend/internal/ledger"
	"github.com/pgwallah/pgwallah-backend/pkg/db/models"
	"github.com/pgwallah/pgwallah-backend/pkg/money"
)

type ledgerReader interface {
	Balances(ctx context.Context, tenantID uuid.UUID) ([]ledger.Balance, error)
	Transaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error)
}

type receiptRegenerator interface {
	Regenerate(ctx context.Context, paymentID uuid.UUID) (string, error)
}

type deadLetters interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

type pendingCounter interface {
	CountPending(ctx context.Context) (int64, error)
}

type deps struct {
	Ledger   ledgerReader
	Receipts receiptRegenerator
	DLQ      deadLetters
	Outbox   pendingCounter
}

type needs struct {
	receipts bool
}

type opener func(ctx context.Context, needs needs) (*deps, func(), error)

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operator tooling for payments, ledger and outbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Duration("timeout", 30*time.Second, "overall command timeout")

	root.AddCommand(newLedgerCmd(open))
	root.AddCommand(newReceiptsCmd(open))
	root.AddCommand(newOutboxCmd(open))
	return root
}

// withDeps runs fn with a timeout-bound context and opened dependencies.
func withDeps(cmd *cobra.Command, open opener, n needs, fn func(ctx context.Context, d *deps) error) error {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	d, cleanup, err := open(ctx, n)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return fn(ctx, d)
}

func newLedgerCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect ledger balances and transactions",
	}

	balances := &cobra.Command{
		Use:   "balances <tenant-id>",
		Short: "Show per-account balances for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := uuid.Parse(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid tenant id %q: %w", args[0], err)
			}
			return withDeps(cmd, open, needs{}, func(ctx context.Context, d *deps) error {
				rows, err := d.Ledger.Balances(ctx, tenantID)
				if err != nil {
					return err
				}
				return printBalances(cmd.OutOrStdout(), rows)
			})
		},
	}

	transaction := &cobra.Command{
		Use:   "transaction <transaction-id>",
		Short: "Show the entries of one ledger transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, needs{}, func(ctx context.Context, d *deps) error {
				entries, err := d.Ledger.Transaction(ctx, strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				return printEntries(cmd.OutOrStdout(), entries)
			})
		},
	}

	cmd.AddCommand(balances, transaction)
	return cmd
}

func newReceiptsCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipts",
		Short: "Manage payment receipts",
	}
	regenerate := &cobra.Command{
		Use:   "regenerate <payment-id>...",
		Short: "Render and upload receipts again, replacing existing ones",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(strings.TrimSpace(arg))
				if err != nil {
					return fmt.Errorf("invalid payment id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}
			return withDeps(cmd, open, needs{receipts: true}, func(ctx context.Context, d *deps) error {
				var failed int
				for _, id := range ids {
					url, err := d.Receipts.Regenerate(ctx, id)
					if err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\tfailed: %v\n", id, err)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, url)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d receipts failed", failed, len(ids))
				}
				return nil
			})
		},
	}
	cmd.AddCommand(regenerate)
	return cmd
}

func newOutboxCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the event outbox",
	}
	dlq := &cobra.Command{
		Use:   "dlq",
		Short: "List events that exhausted their publish attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			return withDeps(cmd, open, needs{}, func(ctx context.Context, d *deps) error {
				rows, err := d.DLQ.List(ctx, limit)
				if err != nil {
					return err
				}
				return printDLQ(cmd.OutOrStdout(), rows)
			})
		},
	}
	dlq.Flags().IntP("limit", "n", 50, "maximum rows to show")

	requeue := &cobra.Command{
		Use:   "requeue <event-id>...",
		Short: "Move dead-lettered events back to the relay queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uuid.UUID, 0, len(args))
			for _, arg := range args {
				id, err := uuid.Parse(strings.TrimSpace(arg))
				if err != nil {
					return fmt.Errorf("invalid event id %q: %w", arg, err)
				}
				ids = append(ids, id)
			}
			return withDeps(cmd, open, needs{}, func(ctx context.Context, d *deps) error {
				for _, id := range ids {
					if err := d.DLQ.Requeue(ctx, id); err != nil {
						return fmt.Errorf("requeue %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\trequeued\n", id)
				}
				return nil
			})
		},
	}

	pending := &cobra.Command{
		Use:   "pending",
		Short: "Count events not yet published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDeps(cmd, open, needs{}, func(ctx context.Context, d *deps) error {
				n, err := d.Outbox.CountPending(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}

	cmd.AddCommand(dlq, requeue, pending)
	return cmd
}

func printBalances(w io.Writer, rows []ledger.Balance) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tCURRENCY\tDEBIT\tCREDIT\tBALANCE")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			row.Account,
			row.Currency,
			money.Format(row.Debit, row.Currency),
			money.Format(row.Credit, row.Currency),
			money.Format(row.Balance, row.Currency),
		)
	}
	return tw.Flush()
}

func printEntries(w io.Writer, entries []models.LedgerEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tDEBIT\tCREDIT\tCURRENCY\tREFERENCE\tDESCRIPTION")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s:%s\t%s\n",
			entry.Account,
			money.Format(entry.Debit, entry.Currency),
			money.Format(entry.Credit, entry.Currency),
			entry.Currency,
			entry.ReferenceType,
			entry.ReferenceID,
			entry.Description,
		)
	}
	return tw.Flush()
}

func printDLQ(w io.Writer, rows []models.OutboxDLQ) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tTYPE\tAGGREGATE\tREASON\tATTEMPTS\tFAILED_AT\tERROR")
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s:%s\t%s\t%d\t%s\t%s\n",
			row.EventID,
			row.EventType,
			row.AggregateType,
			row.AggregateID,
			row.ErrorReason,
			row.AttemptCount,
			row.FailedAt.UTC().Format(time.RFC3339),
			msg,
		)
	}
	return tw.Flush()
}
