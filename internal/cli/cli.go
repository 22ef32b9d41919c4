// Package cli holds the checklistctl operator commands.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/models"
	"github.com/kitchenops/checklists/internal/services"
)

// DBFunc opens the store lazily so --help works without a database.
type DBFunc func() (*gorm.DB, error)

func operator(cmd *cobra.Command) (appctx.Principal, error) {
	tenant, _ := cmd.Flags().GetString("tenant")
	if tenant == "" {
		return appctx.Principal{}, errors.New("--tenant is required")
	}
	return appctx.Principal{TenantID: tenant, IsAdmin: true}, nil
}

func parseIDs(args []string) ([]uint, error) {
	out := make([]uint, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid template id %q", a)
		}
		out = append(out, uint(id))
	}
	return out, nil
}

// explain turns engine conflicts into a readable line.
func explain(err error) error {
	var e *services.Error
	if errors.As(err, &e) && len(e.Conflicts) > 0 {
		return fmt.Errorf("%s (%s)", e.Error(), e.Code)
	}
	return err
}

func statusColor(status string) *color.Color {
	switch status {
	case models.StatusCompleted:
		return color.New(color.FgHiGreen)
	case models.StatusInProgress:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgHiBlack)
}

func GenerateCmd(open DBFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [template-id...]",
		Short: "Generate instances of templates for a date",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := operator(cmd)
			if err != nil {
				return err
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			date, _ := cmd.Flags().GetString("date")
			if date == "" {
				date = services.Today()
			}
			gdb, err := open()
			if err != nil {
				return err
			}
			res, err := services.GenerateInstances(cmd.Context(), gdb, p, ids, date)
			if err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			for _, c := range res.Created {
				fmt.Fprintf(out, "%s Created instance %d: %s (%d items)\n",
					color.New(color.FgHiGreen).Sprint("✓"), c.InstanceID, c.TemplateName, c.ItemCount)
			}
			fmt.Fprintf(out, "  Date: %s\n", res.Date)
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "tenant id")
	cmd.Flags().String("date", "", "target date YYYY-MM-DD (default today)")
	return cmd
}

func CloneCmd(open DBFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clone [template-id]",
		Short: "Copy a template under a new name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := operator(cmd)
			if err != nil {
				return err
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			name, _ := cmd.Flags().GetString("name")
			items, _ := cmd.Flags().GetBool("items")
			conns, _ := cmd.Flags().GetBool("connections")
			gdb, err := open()
			if err != nil {
				return err
			}
			res, err := services.CloneTemplate(cmd.Context(), gdb, p, ids[0], name, services.CloneOptions{
				IncludeItems:       items,
				IncludeConnections: items && conns,
			})
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created template %d: %s (%d root items)\n",
				color.New(color.FgHiGreen).Sprint("✓"), res.Template.ID, res.Template.Name, res.ItemCount)
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "tenant id")
	cmd.Flags().String("name", "", "name of the new template")
	cmd.Flags().Bool("items", false, "copy the item tree")
	cmd.Flags().Bool("connections", false, "copy item connections (with --items)")
	return cmd
}

func ListCmd(open DBFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List instances and their progress for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := operator(cmd)
			if err != nil {
				return err
			}
			date, _ := cmd.Flags().GetString("date")
			if date == "" {
				date = services.Today()
			}
			gdb, err := open()
			if err != nil {
				return err
			}
			list, err := services.ListInstancesForDate(cmd.Context(), gdb, p, date)
			if err != nil {
				return explain(err)
			}
			printInstances(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "tenant id")
	cmd.Flags().String("date", "", "date YYYY-MM-DD (default today)")
	return cmd
}

func printInstances(out io.Writer, list []services.InstanceRow) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No instances.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEMPLATE\tSLOT\tDONE\tPERCENT\tSTATUS")
	for _, r := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\t%d%%\t%s\n",
			r.ID, r.TemplateName, r.TimeSlot, r.CompletedCount, r.ItemCount, r.Percentage,
			statusColor(r.Status).Sprint(r.Status))
	}
	w.Flush()
}
