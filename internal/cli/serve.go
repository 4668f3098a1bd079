package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/topicast/topicast/internal/api"
	"github.com/topicast/topicast/internal/metrics"
	"github.com/topicast/topicast/pkg/logger"
	"github.com/topicast/topicast/pkg/topicast/pipeline"
	"github.com/topicast/topicast/pkg/topicast/store"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve exposes analysis reports, predictions and the exam hierarchy
over HTTP, with Prometheus metrics on /metrics. The server seeds the
baseline exam hierarchy into an empty store on startup and shuts down
gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "listen host")
	serveCmd.Flags().Int("port", 0, "listen port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	hooks := pipeline.Hooks{
		DocumentProcessed: func(status string) {
			if status == store.SourceProcessed {
				metrics.DocumentsProcessed.Inc()
			} else {
				metrics.DocumentsFailed.Inc()
			}
		},
		QuestionsStored: func(count int) {
			metrics.QuestionsExtracted.Add(float64(count))
		},
	}

	eng, err := newEngine(ctx, hooks)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Seed(ctx); err != nil {
		return err
	}

	srv, err := api.New(api.Options{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
		Version:      version,
		Engine:       eng,
		Logger:       logger.Log,
	})
	if err != nil {
		return err
	}

	logger.Info("Starting Topicast API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	return srv.Run(ctx)
}
