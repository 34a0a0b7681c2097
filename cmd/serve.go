package cmd

import (
	"context"
	"time"

	"github.com/briefdesk/briefedit/internal/server"
	"github.com/briefdesk/briefedit/internal/utils"
	"github.com/briefdesk/briefedit/pkg/polling"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the brief editor web server",
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

		var sched *polling.Scheduler
		if interval := viper.GetDuration("catalog.refresh_interval"); interval > 0 {
			sched = polling.New(polling.Config{
				Job: func(ctx context.Context) error {
					return lock.WithLock(ctx, func(ctx context.Context) error {
						_, err := a.Loader.Refresh(ctx)
						return err
					})
				},
				Interval:   interval,
				RunOnStart: true,
				Log:        utils.Log,
			})
			sched.Start()
			defer sched.Stop()
		} else {
			utils.Log.Info("Catalog refresher disabled, catalogs load on first use")
		}

		stop := make(chan struct{})
		defer close(stop)
		go sweepSessions(a, stop)

		srv := server.New(a.Manager, a.Loader, sched,
			viper.GetString("server.username"), viper.GetString("server.password"))
		return srv.Start(viper.GetString("server.listen"))
	},
}

// sweepSessions drops expired sessions every few minutes until stop is closed.
func sweepSessions(a *app, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := a.Manager.Store.Sweep(); n > 0 {
				utils.Log.Debugf("Swept %d expired sessions", n)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().String("username", "", "Basic auth username (empty disables auth)")
	serveCmd.Flags().String("password", "", "Basic auth password")
	serveCmd.Flags().String("refresh-interval", polling.DefaultInterval.String(), "Catalog refresh interval (0 to disable)")

	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("server.username", serveCmd.Flags().Lookup("username"))
	viper.BindPFlag("server.password", serveCmd.Flags().Lookup("password"))
	viper.BindPFlag("catalog.refresh_interval", serveCmd.Flags().Lookup("refresh-interval"))
}
