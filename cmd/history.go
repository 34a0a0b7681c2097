package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/briefdesk/briefedit/pkg/storage"
	"github.com/spf13/cobra"
)

// historyCmd implements: briefedit history
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded forecast runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		since, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")
		verbose, _ := cmd.Flags().GetBool("verbose")

		opts := storage.ListOptions{SessionID: sessionID, Limit: limit}
		if since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				return fmt.Errorf("invalid --since timestamp, expected RFC3339: %w", err)
			}
			opts.Since = t
		}

		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListForecastRuns(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No forecast runs recorded.")
			return nil
		}

		if verbose {
			for _, r := range runs {
				fmt.Printf("#%d %s session=%s\n  request: %s\n  result:  %s\n", r.ID, r.CreatedAt.Local().Format(time.RFC3339), r.SessionID, r.Request, r.Result)
			}
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tWHEN\tSESSION\tPRESETS\tGEOS")
		for _, r := range runs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n", r.ID, r.CreatedAt.Local().Format(time.RFC3339), r.SessionID, r.Presets, r.Geos)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("session", "", "Only runs from this session")
	historyCmd.Flags().String("since", "", "Only runs since this RFC3339 timestamp")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs")
	historyCmd.Flags().BoolP("verbose", "v", false, "Print the request and result JSON")
}
