package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"facecapture/internal/config"
	"facecapture/internal/log"
)

var (
	// cfg はサブコマンドで共有する設定
	cfg *config.Config

	configPath string
	logLevel   string
)

// Version はアプリケーションのバージョン
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "facecapture",
	Short:         "カメラで顔を撮影して登録サーバーへ送るキオスク",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("設定の読み込みに失敗しました: %w", err)
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		log.Init(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

// Execute はルートコマンドを実行する
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML設定ファイルのパス")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
}
