package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operations API and the ops endpoints over HTTP",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address (default :8080)")
	serveCmd.Flags().BoolP("monitor", "m", true, "probe the backend periodically so a severely degraded backend is re-admitted once it recovers (--monitor=false to disable)")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve(cmd *cobra.Command) {
	ctx := context.Background()

	cfg, logger, a, err := bootstrap(ctx)
	if err != nil {
		if logger == nil {
			log.Fatal(err)
		}
		logger.Fatal("starting the interview-coach", zap.Error(err))
	}
	defer logger.Sync()
	defer a.Close()

	logger.Info("starting the interview-coach", zap.String("version", version))

	if monitor, _ := cmd.Flags().GetBool("monitor"); monitor {
		if err := a.StartMonitoring(ctx); err != nil {
			logger.Fatal("starting health monitoring", zap.Error(err))
		}
	} else {
		logger.Warn("health monitoring disabled, a severely degraded backend stays bypassed until an admin probe or reset")
	}

	srv := server.New(cfg.Server.Addr, a, a.Coach, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
		return
	}
	logger.Info("interview-coach stopped gracefully")
}
