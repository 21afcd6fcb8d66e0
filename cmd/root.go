package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scholarly-tools/doideposit/internal/config"
	"github.com/scholarly-tools/doideposit/internal/log"
)

var (
	version    = "dev"
	cfgFile    string
	debugFlag  bool
	contextID  string
	cfg        config.Config
	logCleanup func()
)

// errReported marks failures whose messages were already printed.
var errReported = errors.New("errors reported")

var rootCmd = &cobra.Command{
	Use:   "doideposit",
	Short: "Export metadata to CrossRef and register DOIs",
	Long: `doideposit exports article and issue metadata as CrossRef XML and registers
their DOIs through the CrossRef deposit API.

Every object has a deposit status (notDeposited, failed, registered,
markedRegistered) that is updated after each deposit and can be listed with
objects:list --status or acted upon later.`,
	Version:           version,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
			logCleanup = nil
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			_ = cmd.Usage()
			return fmt.Errorf("unknown command %q", args[0])
		}
		return cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/doideposit/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"write a debug log (path from DOIDEPOSIT_LOG, default debug.log)")
	rootCmd.PersistentFlags().StringVar(&contextID, "context", "",
		"journal context to act on (default: default_context from config)")
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("database_path", defaults.DatabasePath)
	viper.SetDefault("status_cache_ttl", defaults.StatusCacheTTL)
	viper.SetDefault("http.timeout", defaults.HTTP.Timeout)
	viper.SetDefault("http.dial_timeout", defaults.HTTP.DialTimeout)
	viper.SetDefault("http.response_header_timeout", defaults.HTTP.ResponseHeaderTimeout)
	viper.SetDefault("serve.addr", defaults.Serve.Addr)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	viper.SetEnvPrefix("DOIDEPOSIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .doideposit/config.yaml (current directory)
		// 2. ~/.config/doideposit/config.yaml (user config)
		if _, err := os.Stat(".doideposit/config.yaml"); err == nil {
			viper.SetConfigFile(".doideposit/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "doideposit"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create the default in the user config dir
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if defaultPath := defaultConfigPath(); defaultPath != "" {
				if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
					viper.SetConfigFile(defaultPath)
					_ = viper.ReadInConfig()
				}
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	cfg = defaults
	_ = viper.Unmarshal(&cfg)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "doideposit", "config.yaml")
}

// configPath returns the file settings are saved to.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	return defaultConfigPath()
}

// setupLogging enables the debug log when requested via flag or env var.
func setupLogging(*cobra.Command, []string) error {
	if !debugFlag && os.Getenv("DOIDEPOSIT_DEBUG") == "" {
		return nil
	}
	logPath := os.Getenv("DOIDEPOSIT_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	logCleanup = cleanup
	log.Info(log.CatConfig, "doideposit starting", "version", version, "config", viper.ConfigFileUsed())
	return nil
}

// Execute runs the root command. Errors not yet shown to the user are printed to stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
