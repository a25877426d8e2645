package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"homehub/cache"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow hub events",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print events mirrored to Redis by a running hub",
	Long: `Print every event a running hub mirrors to Redis, one JSON document
per line, until interrupted. Requires REDIS_ENABLED=true on both sides.`,
	Args: cobra.NoArgs,
	RunE: runEventsWatch,
}

func init() {
	eventsCmd.AddCommand(eventsWatchCmd)
}

func runEventsWatch(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	redis := a.Redis()
	if redis == nil {
		return errors.New("redis is not enabled or unreachable")
	}

	sub := redis.Subscribe(cmd.Context(), cache.EventsChannel)
	defer sub.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl+C to stop)\n", cache.EventsChannel)
	ch := sub.Channel()
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg.Payload)
		}
	}
}
