package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logger  = logrus.New()
)

// rootCmd is the fm-connector command; serving happens in the server subcommand
var rootCmd = &cobra.Command{
	Use:   "fm-connector",
	Short: "File manager connector server",
	Long: `A connector that lets the browser file manager widget browse, upload,
rename, delete and preview files of a storage backend over its JSON/HTTP protocol.`,
}

// Execute runs the fm-connector command line.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.fm-connector.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	// Bind flags to viper
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("log-json"))
}

// initConfig merges the optional .fm-connector.yaml file with environment
// variables before any subcommand reads its settings.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// $HOME/.fm-connector.yaml, then ./.fm-connector.yaml
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".fm-connector")
	}

	// storage.root becomes STORAGE_ROOT, filemanager.upload.overwrite
	// becomes FILEMANAGER_UPLOAD_OVERWRITE
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	setupLogging()
}

// setupLogging configures the logger shared by the gin access log, the
// connector dispatcher and the storage backend. At debug level gin runs in
// debug mode and every connector action logs its request parameters.
func setupLogging() {
	raw := viper.GetString("log.level")
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", raw)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// JSON output keeps fields such as action and latency as separate keys
	if viper.GetBool("log.json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// GetLogger returns the process-wide logger configured from flags and config.
func GetLogger() *logrus.Logger {
	return logger
}
