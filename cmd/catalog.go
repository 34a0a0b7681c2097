package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/briefdesk/briefedit/internal/utils"
	"github.com/spf13/cobra"
)

// catalogCmd represents the catalog command
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and refresh the cached cohort and location catalogs",
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch cohorts, locations and location groups and store a fresh snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		lock, err := utils.NewCacheLock(a.DBPath)
		if err != nil {
			return err
		}
		if err := lock.Lock(cmd.Context()); err != nil {
			return err
		}
		defer lock.Unlock()

		cat, err := a.Loader.Refresh(cmd.Context())
		if err != nil {
			fmt.Println("Some catalogs were served from the stored snapshot.")
		}
		fmt.Printf("cohorts: %d, locations: %d, location groups: %d, presets: %d\n",
			len(cat.Cohorts), len(cat.Locations), len(cat.Groups), len(cat.Presets))
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List the stored catalog snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		snaps, err := db.ListSnapshots(cmd.Context())
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No catalog snapshots stored. Run 'briefedit catalog refresh' first.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tBYTES\tFETCHED\tAGE")
		for _, s := range snaps {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", s.Kind, s.Size, s.FetchedAt.Local().Format(time.RFC3339), time.Since(s.FetchedAt).Round(time.Minute))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogRefreshCmd)
	catalogCmd.AddCommand(catalogShowCmd)
}
