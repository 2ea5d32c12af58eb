package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZentaChain/zerocom/pkg/config"
	"github.com/ZentaChain/zerocom/pkg/network"
)

func clientCmd() *cobra.Command {
	var (
		address   string
		token     string
		timeout   float64
		idle      float64
		keepalive time.Duration
		redial    bool
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to a server, idle, and connect again",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("address") {
				cfg.Client.Address = address
			}
			if flags.Changed("token") {
				cfg.Client.Token = token
			}
			if flags.Changed("timeout") {
				cfg.Client.Timeout = timeout
			}
			if flags.Changed("idle") {
				cfg.Client.Idle = idle
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cfg, "client")
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr, err := cfg.ServerAddress()
			if err != nil {
				return err
			}
			opts := []network.ClientOption{
				network.WithClientLogger(logger.Logger),
				network.WithClientTimeout(config.Seconds(cfg.Client.Timeout)),
			}

			var c *network.Client
			if redial {
				policy := network.DefaultRedialPolicy()
				policy.Token = cfg.Client.Token
				if c, err = network.Redial(ctx, addr, policy, opts...); err != nil {
					return err
				}
			} else {
				if c, err = network.Dial(ctx, addr, opts...); err != nil {
					return err
				}
				if err := c.Connect(cfg.Client.Token); err != nil {
					c.Close()
					return err
				}
			}
			defer c.Close()
			logger.Info().Str("server", c.RemoteAddr()).Msg("Connected")

			if err := idleFor(ctx, c, config.Seconds(cfg.Client.Idle), keepalive); err != nil {
				return err
			}

			if err := c.Connect(cfg.Client.Token); err != nil {
				return err
			}
			logger.Info().Msg("Reconnected")
			return nil
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Server address (host:port or multiaddr)")
	cmd.Flags().StringVar(&token, "token", "", "Ping token (random if empty)")
	cmd.Flags().Float64VarP(&timeout, "timeout", "t", 3, "Per-read timeout in seconds")
	cmd.Flags().Float64Var(&idle, "idle", 50, "Seconds to idle between the two connects")
	cmd.Flags().DurationVar(&keepalive, "keepalive", 0, "Ping interval while idling (0 = off)")
	cmd.Flags().BoolVar(&redial, "redial", false, "Retry the first connect with exponential backoff")

	return cmd
}

// idleFor waits for d, pinging every keepalive if set. It fails if ctx ends first.
func idleFor(ctx context.Context, c *network.Client, d, keepalive time.Duration) error {
	idleCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	if keepalive > 0 {
		if err := c.KeepAlive(idleCtx, keepalive); err != nil {
			return err
		}
	} else {
		<-idleCtx.Done()
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return nil
}
