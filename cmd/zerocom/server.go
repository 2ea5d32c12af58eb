package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ZentaChain/zerocom/pkg/config"
	"github.com/ZentaChain/zerocom/pkg/network"
	"github.com/ZentaChain/zerocom/pkg/protocol"
)

func serverCmd() *cobra.Command {
	var (
		listen       string
		timeout      float64
		maxConns     int
		strict       bool
		statusListen string
		heartbeat    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the protocol server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("listen") {
				cfg.Server.Listen = listen
			}
			if flags.Changed("timeout") {
				cfg.Server.Timeout = timeout
			}
			if flags.Changed("max-connections") {
				cfg.Server.MaxConnections = maxConns
			}
			if flags.Changed("status-listen") {
				cfg.Status.Enabled = true
				cfg.Status.Listen = statusListen
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg, "server")
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			printBanner(cfg.Server.MOTD)
			return runServer(ctx, cfg, logger.Logger, strict, heartbeat)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (host:port or multiaddr)")
	cmd.Flags().Float64VarP(&timeout, "timeout", "t", 0, "Per-read timeout in seconds (0 = infinite)")
	cmd.Flags().IntVar(&maxConns, "max-connections", 0, "Maximum concurrent connections (0 = unlimited)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Disconnect clients that send unexpected packets")
	cmd.Flags().StringVar(&statusListen, "status-listen", "", "Enable the status API on this address")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", 5*time.Minute, "Interval between stats log lines (0 = off)")

	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger, strict bool, heartbeat time.Duration) error {
	addr, err := cfg.Server.Address()
	if err != nil {
		return err
	}
	var statusAddr string
	if cfg.Status.Enabled {
		if statusAddr, err = config.ResolveListenAddress(cfg.Status.Listen); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := network.NewMetrics(network.WithRegisterer(reg))

	srv := network.NewServer(addr,
		network.WithServerLogger(logger),
		network.WithServerTimeout(cfg.Server.TimeoutDuration()),
		network.WithMaxConnections(cfg.Server.MaxConnections),
		network.WithServerMetrics(metrics),
		network.WithHandler(&network.DefaultHandler{
			ProtocolVersion:  protocol.ProtocolVersion,
			StrictUnexpected: strict,
		}),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Listen(gctx)
	})

	if cfg.Status.Enabled {
		statusCfg := network.DefaultStatusConfig()
		statusCfg.Addr = statusAddr
		statusCfg.Gatherer = reg
		statusCfg.Logger = logger.With().Str("component", "status").Logger()
		status := network.NewStatusServer(srv, statusCfg)
		g.Go(func() error {
			return status.Start(gctx)
		})
	}

	if heartbeat > 0 {
		g.Go(func() error {
			startHeartbeatLoop(gctx, srv, logger, heartbeat)
			return nil
		})
	}

	return g.Wait()
}

// startHeartbeatLoop logs server stats every interval until ctx is done.
func startHeartbeatLoop(ctx context.Context, srv *network.Server, logger zerolog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := srv.Stats()
			logger.Info().
				Int("active", stats.ActiveConnections).
				Uint64("accepted", stats.AcceptedConnections).
				Uint64("rejected", stats.RejectedConnections).
				Uint64("packets in", stats.PacketsReceived).
				Uint64("packets out", stats.PacketsSent).
				Msg("Heartbeat")
		}
	}
}
