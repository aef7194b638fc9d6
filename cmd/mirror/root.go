package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/abihf/smartmirror/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	conf       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Smart mirror face presence daemon",
	Long: `mirror watches a camera for known faces, greets the people it
recognizes and lets new people enroll from the mirror's keyboard.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the YAML config file")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	conf = config.Load(configPath)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: conf.Log.SlogLevel(),
	})))
}
