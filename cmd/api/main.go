package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"civic-reporting-api/internal/app"
	"civic-reporting-api/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "civic-api",
	Short: "Civic issue reporting API",
	Long: `civic-api serves the civic issue reporting backend and offers
administrative commands against the same storage.

Citizens report problems, a remote classifier scores them and awards
reward credits, contractors bid on the resulting work, companies fund
repairs with green credits, and citizens redeem their credits for rewards.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CIVIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (JSON or YAML)")
	rootCmd.PersistentFlags().String("storage", "", "storage backend: file, memory, sqlite, postgres, mongo")
	rootCmd.PersistentFlags().String("data-dir", "", "data directory for the file backend")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("storage", rootCmd.PersistentFlags().Lookup("storage"))
	_ = viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(rewardsCmd())
	rootCmd.AddCommand(featuresCmd())
}

// loadConfig reads the config file and environment, then applies any
// command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("storage"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := viper.GetString("data-dir"); v != "" {
		cfg.Storage.DataDir = v
	}
	if viper.IsSet("port") {
		cfg.Server.Port = viper.GetString("port")
	}
	return cfg, nil
}

// withApp builds the application for one command and closes it afterwards.
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
