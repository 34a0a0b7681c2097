package cmd

import (
	"fmt"
	"os"

	"github.com/briefdesk/briefedit/internal/utils"
	"github.com/briefdesk/briefedit/pkg/polling"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "briefedit",
	Short: "Review and edit media plan briefs extracted from client emails.",
	Long: `briefedit turns a client email into an editable media plan brief: cohorts, locations,
inventory presets, keywords and ABVR audiences. Selections can be forecast, exported to
CSV/PDF and turned into a slide deck.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.briefedit.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy for upstream calls (Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to the SQLite cache (default is ~/.config/briefedit/briefedit.sqlite)")

	viper.BindPFlag("http.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	viper.BindPFlag("storage.dbpath", rootCmd.PersistentFlags().Lookup("dbpath"))
}

func setDefaults() {
	viper.SetDefault("services.backend_url", "http://localhost:8000")
	viper.SetDefault("services.cohorts_url", "http://localhost:8001")
	viper.SetDefault("services.locations_url", "http://localhost:8002")
	viper.SetDefault("services.audience_url", "http://localhost:8003")
	viper.SetDefault("services.presentation_url", "http://localhost:8004")

	viper.SetDefault("http.retries", 0)
	viper.SetDefault("http.timeout", "0s")
	viper.SetDefault("http.rate_limit", 0)

	viper.SetDefault("editor.selection_style", "checkbox")
	viper.SetDefault("editor.age_mode", "text")

	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")

	viper.SetDefault("catalog.ttl", "1h")
	viper.SetDefault("catalog.refresh_interval", polling.DefaultInterval.String())

	viper.SetDefault("presets.table", []map[string]string{})
	viper.SetDefault("presentation.allowed_domains", []string{"docs.google.com"})
	viper.SetDefault("email.strip_html", true)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".briefedit")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("briefedit")
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.briefedit.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
