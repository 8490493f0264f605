package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"gocnt/domain/core"
	"gocnt/internal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// exitAborted is the status of a run stopped by a signal.
const exitAborted = 130

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:           "cnt",
		Short:         "Group connectometry with permutation-based FDR",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newRunCmd(),
		newFeaturesCmd(),
		newSynthCmd(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if core.IsAborted(err) {
			os.Exit(exitAborted)
		}
		os.Exit(1)
	}
}

// serveProfiling exposes pprof and the run metrics on port.
func serveProfiling(port string, logger *internal.Logger) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		logger.Info("profiling server on :%s (pprof at /debug/pprof, metrics at /metrics)", port)
		if err := http.ListenAndServe(":"+port, nil); err != nil {
			logger.Error("profiling server failed: %v", err)
		}
	}()
}
