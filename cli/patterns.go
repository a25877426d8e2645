package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"homehub/automation"
	"homehub/database/patterns"
	models "homehub/database/models_pkg"
)

var (
	patternsDevice        string
	patternsMinConfidence float64
	patternsAll           bool
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect learned patterns",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active patterns, most confident first",
	Args:  cobra.NoArgs,
	RunE:  runPatternsList,
}

var patternsActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Turn a pattern back on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPatternActive(cmd, args[0], true)
	},
}

var patternsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Stop showing and suggesting a pattern",
	Long: `Turn a pattern off. It keeps learning from new actions but is hidden
from listings and no longer produces suggestions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPatternActive(cmd, args[0], false)
	},
}

func init() {
	patternsListCmd.Flags().StringVarP(&patternsDevice, "device", "d", "", "Only show patterns for one device")
	patternsListCmd.Flags().Float64Var(&patternsMinConfidence, "min-confidence", 0, "Hide patterns below this confidence (0..1)")
	patternsListCmd.Flags().BoolVarP(&patternsAll, "all", "a", false, "Include deactivated patterns")

	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsActivateCmd)
	patternsCmd.AddCommand(patternsDeactivateCmd)
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	list, err := a.Service().ListPatterns(cmd.Context(), patterns.Filter{
		DeviceID:      patternsDevice,
		UserID:        userID,
		MinConfidence: patternsMinConfidence,
		ActiveOnly:    !patternsAll,
	})
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No patterns detected yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEVICE\tACTION\tWHEN\tSEEN\tCONFIDENCE\tACTIVE")
	for _, p := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.2f\t%t\n", p.ID, p.DeviceID, describeAction(p), describeWhen(p.Conditions.Data()), p.OccurrenceCount, p.Confidence, p.IsActive)
	}
	return w.Flush()
}

func setPatternActive(cmd *cobra.Command, arg string, active bool) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	changed, err := a.Service().SetPatternActive(cmd.Context(), id, active)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("pattern %d not found", id)
	}
	verb := "deactivated"
	if active {
		verb = "activated"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pattern %d %s\n", id, verb)
	return nil
}

func describeAction(p models.Pattern) string {
	if p.Value != nil {
		return p.Action + " " + *p.Value
	}
	return p.Action
}

func describeWhen(c models.PatternConditions) string {
	when := models.FormatClock(c.Hour, c.Minute)
	if days := automation.DescribeDays(c.DaysOfWeek); days != "" {
		when += " " + days
	}
	return when
}
