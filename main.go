package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/baseera/baseera-go/cmd"
	"github.com/baseera/baseera-go/internal/conf"
	"github.com/baseera/baseera-go/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		logging.Fatal("Error loading configuration", "error", err)
	}

	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
