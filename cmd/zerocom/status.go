package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"resty.dev/v3"

	"github.com/ZentaChain/zerocom/pkg/config"
	"github.com/ZentaChain/zerocom/pkg/network"
)

func statusCmd() *cobra.Command {
	var (
		url     string
		asJSON  bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query the status API of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				addr, err := config.ResolveListenAddress(cfg.Status.Listen)
				if err != nil {
					return err
				}
				url = "http://" + addr
			}
			stats, err := fetchStats(url, timeout)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			printStats(stats)
			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "Status API base URL (default: http://<status.listen>)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Request timeout")

	return cmd
}

func fetchStats(baseURL string, timeout time.Duration) (*network.Stats, error) {
	cli := resty.New().SetTimeout(timeout)
	defer cli.Close()

	stats := &network.Stats{}
	resp, err := cli.R().
		SetResult(stats).
		Get(strings.TrimSuffix(baseURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("status API returned %s", resp.Status())
	}
	return stats, nil
}

func printStats(stats *network.Stats) {
	fmt.Printf("  Address:     %s\n", stats.Address)
	fmt.Printf("  Uptime:      %s\n", (time.Duration(stats.UptimeSeconds) * time.Second).String())
	fmt.Printf("  Connections: %d active, %d accepted, %d rejected\n",
		stats.ActiveConnections, stats.AcceptedConnections, stats.RejectedConnections)
	fmt.Printf("  Packets:     %d received, %d sent\n", stats.PacketsReceived, stats.PacketsSent)
	for _, p := range stats.Peers {
		fmt.Printf("    %s  %-21s  since %s  in=%d out=%d\n",
			p.ID, p.RemoteAddr, p.ConnectedAt.Format(time.TimeOnly), p.PacketsReceived, p.PacketsSent)
	}
}
