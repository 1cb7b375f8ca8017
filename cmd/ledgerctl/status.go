package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/registration-ledger/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print tickets sold and remaining",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := ledger.Registrations.TicketStatus(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), st, ledger.MailMerge.RemainingQuota(cmd.Context()))
		return nil
	},
}

func printStatus(out io.Writer, st model.TicketStatus, quota int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if st.CurrentTotalTickets == nil {
		fmt.Fprintln(w, "Tickets sold\t- (no registrations yet)")
		fmt.Fprintf(w, "Max tickets\t%d\n", st.MaxTotalTickets)
	} else {
		fmt.Fprintf(w, "Tickets sold\t%d\n", *st.CurrentTotalTickets)
		fmt.Fprintf(w, "Max tickets\t%d\n", st.MaxTotalTickets)
		fmt.Fprintf(w, "Remaining\t%d\n", st.MaxTotalTickets-*st.CurrentTotalTickets)
	}
	fmt.Fprintf(w, "Email quota left\t%d\n", quota)
}
