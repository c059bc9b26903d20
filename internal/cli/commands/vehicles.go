package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lavacar-app/lavacar/internal/session"
	"github.com/lavacar-app/lavacar/internal/vehicles"
)

// NewVehiclesCmd creates the vehicles command group
func NewVehiclesCmd(provider Provider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vehicles",
		Short: "Your vehicles and the vehicle catalog",
	}
	guard := requireRole(provider, session.RoleUser)

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your vehicles and their points",
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			list, err := app.Vehicles.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No vehicles registered.")
				fmt.Fprintln(out, "\nAdd one with: lavacar vehicles add")
				return nil
			}

			w := newTable(out)
			fmt.Fprintln(w, "PLATE\tVEHICLE\tYEAR\tPOINTS\tAVAILABLE\tPRIMARY")
			fmt.Fprintln(w, "─────\t───────\t────\t──────\t─────────\t───────")
			for _, v := range list {
				primary := ""
				if v.IsPrimary {
					primary = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					v.LicensePlate, describeVehicle(v), yearOrDash(v.Year), v.Points, v.AvailablePoints, primary)
			}
			return w.Flush()
		},
	}

	primary := &cobra.Command{
		Use:     "primary",
		Short:   "Show your primary vehicle",
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			v, err := app.Vehicles.Primary(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printTitle(out, v.LicensePlate)
			fmt.Fprintf(out, "  Vehicle:   %s\n", describeVehicle(v))
			fmt.Fprintf(out, "  Points:    %d\n", v.Points)
			fmt.Fprintf(out, "  Available: %s\n", points(v.AvailablePoints))
			return nil
		},
	}

	var req vehicles.CreateRequest
	add := &cobra.Command{
		Use:     "add",
		Short:   "Register another vehicle",
		PreRunE: guard,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			if req.LicensePlate, err = promptValue(app, "License plate", req.LicensePlate, required("license plate")); err != nil {
				return err
			}
			if app.Interactive {
				if err := pickVehicle(cmd, app, &req.BrandID, &req.ModelID, &req.TypeID); err != nil {
					return err
				}
			}
			if req.Year, err = promptValue(app, "Year", req.Year, required("year")); err != nil {
				return err
			}

			v, err := app.Vehicles.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Added %s (%s)", v.LicensePlate, describeVehicle(v))
			return nil
		},
	}
	add.Flags().StringVar(&req.LicensePlate, "plate", "", "License plate")
	add.Flags().StringVar(&req.BrandID, "brand", "", "Brand id")
	add.Flags().StringVar(&req.ModelID, "model", "", "Model id")
	add.Flags().StringVar(&req.TypeID, "type", "", "Vehicle type id")
	add.Flags().StringVar(&req.Year, "year", "", "Year")

	brands := &cobra.Command{
		Use:   "brands",
		Short: "List vehicle brands",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			list, err := app.Vehicles.Brands(cmd.Context())
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tBRAND")
			for _, b := range list {
				fmt.Fprintf(w, "%d\t%s\n", b.ID, b.Name)
			}
			return w.Flush()
		},
	}

	models := &cobra.Command{
		Use:   "models <brand-id>",
		Short: "List the models of a brand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			brandID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid brand id %q", args[0])
			}
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			res, err := app.Vehicles.Models(cmd.Context(), brandID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTitle(out, res.Brand.Name)
			w := newTable(out)
			fmt.Fprintln(w, "ID\tMODEL\tTYPE")
			for _, m := range res.Models {
				fmt.Fprintf(w, "%d\t%s\t%s\n", m.ID, m.Name, orDash(m.VehicleTypeName))
			}
			return w.Flush()
		},
	}

	types := &cobra.Command{
		Use:   "types",
		Short: "List vehicle types",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider(cmd)
			if err != nil {
				return err
			}
			list, err := app.Vehicles.Types(cmd.Context())
			if err != nil {
				return err
			}
			w := newTable(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tTYPE\tDESCRIPTION")
			for _, t := range list {
				fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Name, orDash(t.Description))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(list, primary, add, brands, models, types)
	return cmd
}

func describeVehicle(v vehicles.Vehicle) string {
	desc := v.Brand
	if v.Model != "" {
		desc += " " + v.Model
	}
	if v.Type != "" {
		desc += " (" + v.Type + ")"
	}
	return orDash(desc)
}

func yearOrDash(year int) string {
	if year == 0 {
		return "-"
	}
	return strconv.Itoa(year)
}
