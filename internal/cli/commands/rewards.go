package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lavacar-app/lavacar/internal/rewards"
	"github.com/lavacar-app/lavacar/internal/session"
	"github.com/lavacar-app/lavacar/internal/ticket"
)

// NewCouponsCmd creates the coupons command group
func NewCouponsCmd(provider Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coupons",
		Short: "Wash packages you can buy and earn points with",
	}
	guard := requireRole(provider, session.RoleUser)

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List coupons for your primary vehicle",
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			res, err := app.Rewards.Coupons(cmd.Context())
			if err != nil {
				return err
			}
			return printCoupons(cmd.OutOrStdout(), res)
		},
	}

	recent := &cobra.Command{
		Use:     "recent",
		Short:   "List the newest coupons",
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			res, err := app.Rewards.RecentCoupons(cmd.Context())
			if err != nil {
				return err
			}
			return printCoupons(cmd.OutOrStdout(), res)
		},
	}

	show := &cobra.Command{
		Use:     "show <id>",
		Short:   "Show a coupon",
		Args:    cobra.ExactArgs(1),
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			c, err := app.Rewards.Coupon(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTitle(out, c.Title)
			fmt.Fprintf(out, "  %s\n\n", c.Description)
			fmt.Fprintf(out, "  Price:   %s\n", c.Price)
			fmt.Fprintf(out, "  Earns:   %s\n", points(c.Points))
			if c.ExpirationDate != nil {
				fmt.Fprintf(out, "  Expires: %s\n", *c.ExpirationDate)
			}
			if c.ApplicabilityDescription != "" {
				fmt.Fprintf(out, "  Applies: %s\n", c.ApplicabilityDescription)
			}
			if c.YourVehicle != nil {
				if c.AppliesToYourVehicle {
					printSuccess(out, "Applies to %s", c.YourVehicle.LicensePlate)
				} else {
					printWarning(out, "Does not apply to %s", c.YourVehicle.LicensePlate)
				}
			}
			return nil
		},
	}

	var plate string
	qr := &cobra.Command{
		Use:     "qr <id>",
		Short:   "Print the ticket an agent scans to claim a coupon",
		Args:    cobra.ExactArgs(1),
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			if plate, err = ticketPlate(cmd, app, plate); err != nil {
				return err
			}
			return printTicket(cmd.OutOrStdout(), ticket.ForCoupon(plate, id))
		},
	}
	qr.Flags().StringVar(&plate, "plate", "", "License plate (defaults to your primary vehicle)")

	cmd.AddCommand(list, recent, show, qr)
	return cmd
}

// NewRedemptionsCmd creates the redemptions command group
func NewRedemptionsCmd(provider Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "redemptions",
		Short: "Rewards you can pay for with points",
	}
	guard := requireRole(provider, session.RoleUser)

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List redemptions",
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			res, err := app.Rewards.Redemptions(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.Data) == 0 {
				fmt.Fprintln(out, "No redemptions available.")
				return nil
			}
			w := newTable(out)
			fmt.Fprintln(w, "ID\tTITLE\tPOINTS\tAVAILABLE")
			fmt.Fprintln(w, "──\t─────\t──────\t─────────")
			for _, r := range res.Data {
				available := "no"
				if r.UserCanRedeem {
					available = "yes"
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.ID, r.Title, r.PointsRequired, available)
			}
			return w.Flush()
		},
	}

	var plate string
	qr := &cobra.Command{
		Use:     "qr <id>",
		Short:   "Print the ticket an agent scans to claim a redemption",
		Args:    cobra.ExactArgs(1),
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			if plate, err = ticketPlate(cmd, app, plate); err != nil {
				return err
			}
			return printTicket(cmd.OutOrStdout(), ticket.ForRedemption(plate, id))
		},
	}
	qr.Flags().StringVar(&plate, "plate", "", "License plate (defaults to your primary vehicle)")

	cmd.AddCommand(list, qr)
	return cmd
}

// NewHistoryCmd creates the history command
func NewHistoryCmd(provider Provider) *cobra.Command {
	var months int
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show your point history",
		PreRunE: requireRole(provider, session.RoleUser),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			h, err := app.Rewards.History(cmd.Context(), months)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTitle(out, fmt.Sprintf("Last %s months", h.Period.Months))
			fmt.Fprintf(out, "  Earned: %s  Spent: %s  Net: %s\n\n",
				h.Stats.TotalPointsEarned, h.Stats.TotalPointsSpent, h.Stats.NetPoints)

			if len(h.Data) == 0 {
				fmt.Fprintln(out, "No transactions in this period.")
				return nil
			}
			w := newTable(out)
			fmt.Fprintln(w, "DATE\tTYPE\tPOINTS\tPLATE\tDESCRIPTION")
			fmt.Fprintln(w, "────\t────\t──────\t─────\t───────────")
			for _, t := range h.Data {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					orDash(t.CreatedAtHuman), orDash(t.TransactionTypeDisplay), t.FormattedPoints,
					orDash(t.Vehicle.LicensePlate), orDash(t.Description))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&months, "months", rewards.DefaultHistoryMonths, "Months of history to show")
	return cmd
}

// NewAlertsCmd creates the alerts command
func NewAlertsCmd(provider Provider) *cobra.Command {
	return &cobra.Command{
		Use:     "alerts",
		Short:   "Show active alerts",
		PreRunE: requireRole(provider, session.RoleUser),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			res, err := app.Rewards.Alerts(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.Data) == 0 {
				fmt.Fprintln(out, "No alerts.")
				return nil
			}
			for _, a := range res.Data {
				printTitle(out, a.Title)
				fmt.Fprintf(out, "  %s\n", a.Description)
				if a.CouponData != nil {
					fmt.Fprintf(out, "  %s · %s\n", a.CouponData.Price, points(a.CouponData.Points))
				}
				if a.HasLink && a.LinkURL != nil {
					printMuted(out, "  %s", *a.LinkURL)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}

// NewBannersCmd creates the banners command
func NewBannersCmd(provider Provider) *cobra.Command {
	return &cobra.Command{
		Use:     "banners",
		Short:   "Show promotional banners",
		PreRunE: requireRole(provider, session.RoleUser),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			list, err := app.Rewards.Banners(cmd.Context())
			if err != nil {
				return err
			}

			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "#\tTITLE\tLINK")
			for _, b := range list {
				kind, link := b.Link()
				switch kind {
				case rewards.LinkExternal:
					link += " (opens browser)"
				case rewards.LinkNone:
					link = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", b.OrderPosition, b.Title, link)
			}
			return w.Flush()
		},
	}
}

func printCoupons(out io.Writer, res rewards.CouponList) error {
	if v := res.Meta.FilteredForVehicle; v != nil {
		printMuted(out, "Showing coupons for %s (%s)", v.LicensePlate, strings.TrimSpace(v.Brand+" "+v.Type))
	}
	if len(res.Data) == 0 {
		fmt.Fprintln(out, "No coupons available.")
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "ID\tTITLE\tPRICE\tPOINTS\tEXPIRES")
	fmt.Fprintln(w, "──\t─────\t─────\t──────\t───────")
	for _, c := range res.Data {
		expires := "-"
		if c.ExpirationDate != nil {
			expires = *c.ExpirationDate
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", c.ID, c.Title, c.Price, c.Points, expires)
	}
	return w.Flush()
}

// ticketPlate returns plate, or the primary vehicle's plate when empty
func ticketPlate(cmd *cobra.Command, app *App, plate string) (string, error) {
	if plate != "" {
		return strings.ToUpper(plate), nil
	}
	v, err := app.Vehicles.Primary(cmd.Context())
	if err != nil {
		return "", fmt.Errorf("failed to load primary vehicle: %w", err)
	}
	return v.LicensePlate, nil
}

func printTicket(out io.Writer, t ticket.Ticket) error {
	payload, err := ticket.Encode(t)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, payload)
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
