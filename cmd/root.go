package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/privscope/privscope/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	             _
	 _ __  _ __(_)_   _ ___  ___ ___  _ __   ___
	| '_ \| '__| \ \ / / __|/ __/ _ \| '_ \ / _ \
	| |_) | |  | |\ V /\__ \ (_| (_) | |_) |  __/
	| .__/|_|  |_| \_/ |___/\___\___/| .__/ \___|
	|_|                              |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "privscope",
	Short: "Track third-party privacy settings on behalf of your users.",
	Long: LOGO + `privscope periodically extracts privacy toggles from provider account
pages, stores each user's deviation from the platform-wide defaults, and
flags every change and risk between scans.`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.privscope.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("db", "", "", "path to the sqlite database (default is $HOME/.config/privscope/privscope.sqlite)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".privscope")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.privscope.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("crawl.endpoint", "https://api.firecrawl.dev")
	viper.SetDefault("crawl.api_key", "")
	viper.SetDefault("crawl.requests_per_minute", 30)
	viper.SetDefault("crawl.cache_ttl_minutes", 5)
	viper.SetDefault("crawl.retry_max", 4)
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.model", "")
	viper.SetDefault("ai.endpoint", "")
	viper.SetDefault("retention.days", 90)
	viper.SetDefault("platforms", map[string]any{})

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
