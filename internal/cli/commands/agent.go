package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lavacar-app/lavacar/internal/agent"
	"github.com/lavacar-app/lavacar/internal/session"
	"github.com/lavacar-app/lavacar/internal/ticket"
)

// NewAgentCmd creates the agent command group
func NewAgentCmd(provider Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Wash-station commands for signed-in agents",
	}
	guard := requireRole(provider, session.RoleAgent)

	profile := &cobra.Command{
		Use:     "profile",
		Short:   "Show your agent profile and stats",
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			p, err := app.Agent.Profile(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTitle(out, fmt.Sprintf("%s (%s)", p.Agent.Name, p.Agent.Code))
			if p.Agent.Location != "" {
				fmt.Fprintf(out, "  Location:   %s\n", p.Agent.Location)
			}
			fmt.Fprintf(out, "  Today:      %d\n", p.Stats.TransactionsToday)
			fmt.Fprintf(out, "  This week:  %d\n", p.Stats.TransactionsThisWeek)
			fmt.Fprintf(out, "  Coupons:    %d\n", p.Stats.TotalCouponTransactions)
			fmt.Fprintf(out, "  Redeemed:   %d\n", p.Stats.TotalRedemptionTransactions)
			fmt.Fprintf(out, "  Total:      %d\n", p.Stats.TotalTransactions)
			return nil
		},
	}

	var limit int
	transactions := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List the claims you processed",
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			res, err := app.Agent.Transactions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printAgentTransactions(cmd.OutOrStdout(), res)
		},
	}
	transactions.Flags().IntVar(&limit, "limit", 0, "Maximum number of transactions (server default when 0)")

	var (
		plate        string
		couponID     string
		redemptionID string
		yes          bool
	)
	claim := &cobra.Command{
		Use:   "claim [ticket]",
		Short: "Claim a scanned ticket or a coupon/redemption for a plate",
		Long: `Claim a coupon or a redemption for a vehicle.

Pass the payload scanned from the customer's QR code, or give the plate and
the item with --plate and --coupon or --redemption.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}

			var t ticket.Ticket
			if len(args) == 1 {
				if t, err = ticket.Parse(args[0]); err != nil {
					return err
				}
			} else {
				t = ticket.Ticket{
					LicensePlate: strings.ToUpper(plate),
					CouponID:     couponID,
					RedemptionID: redemptionID,
				}
			}
			if err := t.Validate(); err != nil {
				return err
			}

			if !yes && app.Interactive {
				label := fmt.Sprintf("Claim %s %s for %s", t.Kind(), t.ID(), t.LicensePlate)
				if !confirm(app, label) {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
			}

			res, err := app.Agent.Claim(cmd.Context(), t)
			if err != nil {
				return err
			}
			printClaim(cmd.OutOrStdout(), res)
			return nil
		},
	}
	claim.Flags().StringVar(&plate, "plate", "", "License plate")
	claim.Flags().StringVar(&couponID, "coupon", "", "Coupon id")
	claim.Flags().StringVar(&redemptionID, "redemption", "", "Redemption id")
	claim.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation")
	claim.MarkFlagsMutuallyExclusive("coupon", "redemption")

	cmd.AddCommand(profile, transactions, claim)
	return cmd
}

func printAgentTransactions(out io.Writer, res agent.TransactionList) error {
	if len(res.Data) == 0 {
		fmt.Fprintln(out, "No transactions yet.")
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "DATE\tTYPE\tITEM\tPLATE\tPOINTS")
	fmt.Fprintln(w, "────\t────\t────\t─────\t──────")
	for _, t := range res.Data {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			orDash(t.TransactionDate), orDash(t.Type), t.ItemTitle, t.LicensePlate, t.Points)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if res.Meta.Total > len(res.Data) {
		printMuted(out, "\nShowing %d of %d", len(res.Data), res.Meta.Total)
	}
	return nil
}

func printClaim(out io.Writer, res agent.ClaimResult) {
	printSuccess(out, "Claimed %s: %s", res.Kind, res.Title())
	fmt.Fprintf(out, "  Customer:  %s %s\n", res.Account.FirstName, res.Account.LastName)
	fmt.Fprintf(out, "  Vehicle:   %s\n", res.Vehicle.LicensePlate)
	fmt.Fprintf(out, "  Available: %s\n", points(res.Vehicle.AvailablePoints))
}
