package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/danielolaszy/boardsync/internal/logging"
	"github.com/danielolaszy/boardsync/internal/notify"
	"github.com/danielolaszy/boardsync/internal/store"
	"github.com/spf13/cobra"
)

// watchCmd follows a project's change stream and reprints its stage counts
// whenever the server reports a change.
var watchCmd = &cobra.Command{
	Use:   "watch <project>",
	Short: "Follow changes to a project",
	Long: `Load a project and keep it in sync with the server. Each time the
server reports that the project's todo.md changed, the tickets are
refetched and the stage counts printed. Changes to other projects are
ignored.

Runs until interrupted, or until --count refreshes have been printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID := args[0]

		eventsURL, err := cmd.Flags().GetString("events-url")
		if err != nil {
			return err
		}
		if eventsURL == "" {
			eventsURL = appConfig.API.EventsURL
		}

		count, err := cmd.Flags().GetInt("count")
		if err != nil {
			return err
		}

		client, err := newClient()
		if err != nil {
			return err
		}

		s, err := loadProject(cmd.Context(), client, projectID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		writeStageCounts(out, s)

		ctx := cmd.Context()
		refresh := notify.RefreshOnChange(ctx, s)
		limitReached := make(chan struct{})
		var once sync.Once
		refreshed := 0

		// The bridge delivers events from a single goroutine.
		bridge := notify.NewBridge(notify.NewSSESubscriber(eventsURL))
		bridge.SetCallback(func(ev notify.Event) {
			if ev.ProjectID != s.ProjectID() {
				logging.Debug("ignoring change to other project", "project_id", ev.ProjectID)
				return
			}
			refresh(ev)
			if msg := s.Err(); msg != "" {
				fmt.Fprintf(out, "%s refresh failed: %s\n", time.Now().Format(time.TimeOnly), msg)
				return
			}
			writeStageCounts(out, s)

			refreshed++
			if count > 0 && refreshed >= count {
				once.Do(func() { close(limitReached) })
			}
		})

		if err := bridge.Start(ctx); err != nil {
			return err
		}
		logging.Info("watching project", "project_id", projectID, "events_url", eventsURL)

		select {
		case <-ctx.Done():
		case <-limitReached:
		case <-bridge.Done():
		}
		return bridge.Stop()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("events-url", "", "Change stream URL (default derived from the API URL)")
	watchCmd.Flags().Int("count", 0, "Exit after this many refreshes (0 runs until interrupted)")
}

func writeStageCounts(w io.Writer, s *store.TicketStore) {
	counts := make(map[string]int)
	for _, group := range s.ByStage() {
		counts[string(group.Stage)] = len(group.Tickets)
	}
	fmt.Fprintf(w, "%s %s: %d tickets, %s\n",
		time.Now().Format(time.TimeOnly), s.ProjectID(), s.Total(), stageSummary(counts))
}
