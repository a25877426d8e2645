package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	models "homehub/database/models_pkg"
)

var suggestionsStatus string

var suggestionsCmd = &cobra.Command{
	Use:     "suggestions",
	Aliases: []string{"suggestion"},
	Short:   "Review suggested automations",
}

var suggestionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suggestions (pending by default)",
	Args:  cobra.NoArgs,
	RunE:  runSuggestionsList,
}

var suggestionsAcceptCmd = &cobra.Command{
	Use:   "accept <id>",
	Short: "Accept a suggestion and install its automation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggestionsAccept,
}

var suggestionsRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a suggestion",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggestionsReject,
}

func init() {
	suggestionsListCmd.Flags().StringVarP(&suggestionsStatus, "status", "s", models.SuggestionPending, "pending, accepted or rejected")

	suggestionsCmd.AddCommand(suggestionsListCmd)
	suggestionsCmd.AddCommand(suggestionsAcceptCmd)
	suggestionsCmd.AddCommand(suggestionsRejectCmd)
}

func runSuggestionsList(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	svc := a.Service().Suggestions
	var list []models.Suggestion
	if suggestionsStatus == models.SuggestionPending {
		list, err = svc.ListPending(cmd.Context(), userID)
	} else {
		list, err = svc.List(cmd.Context(), userID, suggestionsStatus)
	}
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No %s suggestions.\n", suggestionsStatus)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSUGGESTION")
	for _, s := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.ID, s.Status, s.SuggestionText)
	}
	return w.Flush()
}

func runSuggestionsAccept(cmd *cobra.Command, args []string) error {
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
	accepted, au, err := svc.AcceptAndCreate(cmd.Context(), id, userID)
	if err != nil && !accepted {
		return err
	}
	if !accepted {
		return svc.Suggestions.Explain(cmd.Context(), id, userID)
	}
	if err != nil {
		return fmt.Errorf("suggestion %d accepted but the automation was not created: %w", id, err)
	}
	if au == nil {
		return fmt.Errorf("suggestion %d accepted but the automation was not created", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Suggestion %d accepted; automation %d %q created\n", id, au.ID, au.Name)
	return nil
}

func runSuggestionsReject(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	svc := a.Service().Suggestions
	rejected, err := svc.Reject(cmd.Context(), id, userID)
	if err != nil {
		return err
	}
	if !rejected {
		return svc.Explain(cmd.Context(), id, userID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Suggestion %d rejected\n", id)
	return nil
}
