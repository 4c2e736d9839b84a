package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"facecapture/internal/camera"
	"facecapture/internal/capture"
	"facecapture/internal/log"
	"facecapture/internal/server"
	"facecapture/internal/snapshot"
	"facecapture/internal/status"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "キオスク画面のHTTPサーバーを起動する",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "サーバーのポート (デフォルト: 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	// コマンドラインオプションで設定を上書き
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	client, err := newRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRegistry(cfg, client)

	display := status.NewDisplay()
	activator, preview := newActivator(cfg, display)

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	monitor := camera.NewMonitor(preview, camera.NewLinuxDiscovery(), display, camera.DefaultMonitorInterval)
	go monitor.Run(monitorCtx)

	defer func() {
		if err := activator.StopCamera(context.Background()); err != nil {
			log.Warn("カメラの停止に失敗", "error", err)
		}
	}()

	srv := server.New(cfg, server.Deps{
		Activator: activator,
		Preview:   preview,
		Capture:   capture.NewService(preview, client, display, snapshot.NewCanvas()),
		Sections:  client,
		Status:    display,
	})

	log.Info("facecapture サーバーを起動します", "addr", cfg.ServerAddress(), "registry", cfg.Registry.BaseURL)
	return srv.Start(ctx)
}
