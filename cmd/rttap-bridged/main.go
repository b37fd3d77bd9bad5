// Rttap-bridged is a simulated probe bridge for rttap development.
//
// It serves the bridge frame protocol over websocket against an in-memory
// target whose RAM holds a live RTT control block. A background loop plays
// the firmware: it emits timestamped log lines on the up channel and
// echoes anything the host writes down.
//
// Point rttap at it with --bridge ws://localhost:9160/debug (the default).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/rttap/internal/bridge"
	"github.com/muurk/rttap/internal/discovery"
	"github.com/muurk/rttap/internal/logging"
	"github.com/muurk/rttap/internal/version"
)

var (
	listenAddr  string
	advertiseAs string
	logInterval string
)

var rootCmd = &cobra.Command{
	Use:     "rttap-bridged",
	Short:   "Simulated probe bridge daemon",
	Version: version.Version,
	Long: `Serves the rttap bridge protocol against a simulated target.

The simulated target keeps 64 KiB of RAM with an initialized RTT control
block (one up and one down channel) and continuously produces log output,
so every rttap command can be exercised without hardware.`,
	Example: `  # Serve on the default port and advertise via mDNS
  rttap-bridged

  # Custom port, no advertisement
  rttap-bridged --listen :7331 --advertise ""`,
	RunE: runBridge,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.Flags().StringVar(&listenAddr, "listen", ":9160", "HTTP listen address")
	rootCmd.Flags().StringVar(&advertiseAs, "advertise", "rttap-sim", "mDNS instance name (empty disables)")
	rootCmd.Flags().StringVar(&logInterval, "log-interval", "500ms", "Simulated log line interval")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runBridge(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if err := logging.Initialize("info"); err != nil {
		return err
	}
	defer logging.Sync()
	logger := logging.GetLogger()

	interval, err := time.ParseDuration(logInterval)
	if err != nil {
		return fmt.Errorf("invalid log interval: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	target := bridge.NewSimTarget(bridge.DefaultSimConfig())
	logger.Info("simulated target ready",
		zap.String("control_block", fmt.Sprintf("0x%08x", target.ControlBlockAddr())),
	)

	go firmwareLoop(ctx, target, interval, logger)

	if advertiseAs != "" {
		port := 9160
		if _, err := fmt.Sscanf(listenAddr, ":%d", &port); err != nil {
			logger.Warn("cannot derive port from listen address, advertising 9160",
				zap.String("listen", listenAddr),
			)
		}
		if err := discovery.Advertise(ctx, advertiseAs, port); err != nil {
			logger.Warn("mDNS advertisement failed", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: bridge.NewServer(target, logger).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("bridge listening", zap.String("addr", listenAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// firmwareLoop plays the target firmware: periodic log lines up, echo of
// host input back up.
func firmwareLoop(ctx context.Context, target *bridge.SimTarget, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq++
			line := fmt.Sprintf("[%8d] sim: heartbeat %d\n", time.Now().UnixMilli(), seq)
			target.EmitUp([]byte(line))

			if input := target.DrainDown(256); len(input) > 0 {
				logger.Info("host wrote down channel", zap.ByteString("data", input))
				target.EmitUp([]byte(fmt.Sprintf("sim: echo %q\n", input)))
			}
		}
	}
}
