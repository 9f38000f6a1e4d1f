package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/baseera/baseera-go/internal/catalog"
	"github.com/baseera/baseera-go/internal/charts"
	"github.com/baseera/baseera-go/internal/classifier"
	"github.com/baseera/baseera-go/internal/conf"
	"github.com/baseera/baseera-go/internal/httpcontroller"
	"github.com/baseera/baseera-go/internal/logging"
	"github.com/baseera/baseera-go/internal/observability"
	"github.com/baseera/baseera-go/internal/store"
	"github.com/baseera/baseera-go/internal/wizard"
)

// Command creates the serve command, which runs the web dashboard.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis dashboard web server",
		Long:  "Start the HTTP server exposing the dish selection and plate analysis workflow, record history, CSV export and the chart gallery.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().StringVar(&settings.Dashboard.ChartsDir, "chartsdir", viper.GetString("dashboard.chartsdir"), "Directory of pre-rendered chart images")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func runServer(settings *conf.Settings) error {
	// A session secret generated at validation time is written back to the
	// config file so browser sessions survive restarts.
	if viper.GetString("webserver.sessionsecret") == "" && settings.WebServer.SessionSecret != "" {
		viper.Set("webserver.sessionsecret", settings.WebServer.SessionSecret)
		if err := conf.SaveSettings(); err != nil {
			logging.Warn("Failed to persist generated session secret", "error", err)
		}
	}

	// The charts directory is created up front so the gallery watcher can
	// attach before any charts are dropped in.
	settings.Dashboard.ChartsDir = conf.GetBasePath(settings.Dashboard.ChartsDir)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	st, err := store.New(settings, metrics)
	if err != nil {
		return err
	}
	defer st.Close()

	cls := classifier.New(settings, metrics)
	defer cls.Delete()

	cat := catalog.New(settings)
	wiz := wizard.New(st, cls, cat, metrics)

	gallery, err := charts.New(settings)
	if err != nil {
		return err
	}
	defer gallery.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := httpcontroller.New(settings, wiz, cat, cls, gallery, metrics)
	logging.Info("Dashboard starting", "port", settings.WebServer.Port, "model_available", cls.Available())
	return server.Start(ctx)
}
