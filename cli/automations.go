package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"homehub/automation"
	models "homehub/database/models_pkg"
)

var (
	automationsTrigger string
	executeTimeout     time.Duration
)

var automationsCmd = &cobra.Command{
	Use:     "automations",
	Aliases: []string{"automation", "auto"},
	Short:   "List, run and toggle automations",
}

var automationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List automations",
	Args:  cobra.NoArgs,
	RunE:  runAutomationsList,
}

var automationsExecuteCmd = &cobra.Command{
	Use:   "execute <id>",
	Short: "Run an automation now, as a manual trigger",
	Args:  cobra.ExactArgs(1),
	RunE:  runAutomationsExecute,
}

var automationsEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Enable an automation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleAutomation(cmd, args[0], (*automation.Store).Enable, "enabled")
	},
}

var automationsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable an automation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleAutomation(cmd, args[0], (*automation.Store).Disable, "disabled")
	},
}

var automationsActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Mark an automation active",
	Long: `Mark an automation active. An automation runs only while it is both
enabled and active.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleAutomation(cmd, args[0], (*automation.Store).Activate, "activated")
	},
}

var automationsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Mark an automation inactive without disabling it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleAutomation(cmd, args[0], (*automation.Store).Deactivate, "deactivated")
	},
}

func init() {
	automationsListCmd.Flags().StringVarP(&automationsTrigger, "trigger", "t", "", "Only show one trigger type (time, event, pattern, manual)")
	automationsExecuteCmd.Flags().DurationVar(&executeTimeout, "connect-timeout", 10*time.Second, "How long to wait for the device gateway")

	automationsCmd.AddCommand(automationsListCmd)
	automationsCmd.AddCommand(automationsExecuteCmd)
	automationsCmd.AddCommand(automationsEnableCmd)
	automationsCmd.AddCommand(automationsDisableCmd)
	automationsCmd.AddCommand(automationsActivateCmd)
	automationsCmd.AddCommand(automationsDeactivateCmd)
}

func runAutomationsList(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	list, err := a.Service().Store.List(cmd.Context(), userID, automationsTrigger)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No automations.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTRIGGER\tENABLED\tACTIVE\tACTIONS")
	for _, au := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%t\t%d\n", au.ID, au.Name, au.TriggerType, au.IsEnabled, au.IsActive, len(au.Actions))
	}
	return w.Flush()
}

func runAutomationsExecute(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	svc := a.Service()
	if _, err := svc.Store.Get(cmd.Context(), id); err != nil {
		return err
	}
	if err := a.ConnectDevices(cmd.Context(), executeTimeout); err != nil {
		return fmt.Errorf("device backend: %w", err)
	}

	ok, err := svc.Executor.Execute(cmd.Context(), id, map[string]interface{}{
		"trigger_type": models.TriggerManual,
		"source":       "cli",
	})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "Automation %d did not run successfully (disabled, conditions unmet or a device failed)\n", id)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Automation %d executed\n", id)
	return nil
}

// toggleAutomation applies one of the Store flag setters to the id in arg
func toggleAutomation(cmd *cobra.Command, arg string, set func(*automation.Store, context.Context, uint) (bool, error), verb string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	changed, err := set(a.Service().Store, cmd.Context(), id)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("automation %d not found", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Automation %d %s\n", id, verb)
	return nil
}
