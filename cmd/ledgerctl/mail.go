package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
	"github.com/Shivanand-hulikatti/registration-ledger/internal/service"
)

var maxEmails int

var sendInitialCmd = &cobra.Command{
	Use:   "send-initial",
	Short: "Send registration confirmations with payment instructions",
	Long: `send-initial emails every email registrant that has not yet received
the registration confirmation, top to bottom, up to --max messages.

Example:
  ledgerctl send-initial
  ledgerctl send-initial --max 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd.Context(), cmd.OutOrStdout(), ledger.MailMerge, model.TemplateInitial, maxEmails)
	},
}

var sendFinalCmd = &cobra.Command{
	Use:   "send-final",
	Short: "Send payment confirmations with the check-in QR code",
	Long: `send-final emails every fully paid registrant (balance 0) that has not
yet received the payment confirmation, up to --max messages.

Example:
  ledgerctl send-final --max 50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSend(cmd.Context(), cmd.OutOrStdout(), ledger.MailMerge, model.TemplateFinal, maxEmails)
	},
}

func init() {
	for _, c := range []*cobra.Command{sendInitialCmd, sendFinalCmd} {
		c.Flags().IntVar(&maxEmails, "max", service.UseRemainingQuota, "maximum emails to send (default: remaining daily quota)")
	}
}

// merger is the part of the mail merge service the CLI drives.
type merger interface {
	Send(ctx context.Context, tpl model.MailTemplate, maxEmails int) (model.MailMergeResult, error)
	RemainingQuota(ctx context.Context) int
}

var errQuotaExhausted = errors.New("daily email quota exhausted, try again tomorrow")

func runSend(ctx context.Context, out io.Writer, m merger, tpl model.MailTemplate, limit int) error {
	remaining := m.RemainingQuota(ctx)
	if remaining <= 0 {
		return errQuotaExhausted
	}
	if limit < 0 || limit > remaining {
		limit = remaining
	}
	fmt.Fprintf(out, "Sending up to %d %s confirmation email(s); %d remaining in today's quota.\n", limit, tpl, remaining)

	res, err := m.Send(ctx, tpl, limit)
	if err != nil {
		return fmt.Errorf("send %s confirmations: %w", tpl, err)
	}
	printResult(out, res)
	return nil
}

func printResult(out io.Writer, res model.MailMergeResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Processed\t%d\n", res.TotalProcessed)
	fmt.Fprintf(w, "Sent\t%d\n", res.SuccessCount)
	fmt.Fprintf(w, "Failed\t%d\n", res.FailureCount)
	w.Flush()

	if len(res.Errors) == 0 {
		return
	}
	fmt.Fprintln(out, "\nFailures:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tERROR")
	for _, e := range res.Errors {
		fmt.Fprintf(w, "%d\t%s\n", e.Row, e.Error)
	}
	w.Flush()
}
