package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vietddude/doctrans/internal/core/config"
	redisclient "github.com/vietddude/doctrans/internal/infra/redis"
)

var expireLinkCmd = &cobra.Command{
	Use:   "expire-link [download_id]",
	Short: "Expire a download link before its TTL runs out",
	Args:  cobra.ExactArgs(1),
	Run:   runExpireLink,
}

func init() {
	rootCmd.AddCommand(expireLinkCmd)
}

func runExpireLink(cmd *cobra.Command, args []string) {
	downloadID := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Redis.URL == "" {
		slog.Error("expire-link requires Redis (set redis.url)")
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	ctx := context.Background()
	if _, err := client.ResolveDownload(ctx, downloadID); err != nil {
		slog.Error("Download link not found", "download_id", downloadID)
		os.Exit(1)
	}

	if err := client.ExpireDownload(ctx, downloadID); err != nil {
		slog.Error("Failed to expire link", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Expired download link %s\n", downloadID)
}
