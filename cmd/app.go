package cmd

import (
	"context"
	"errors"
	"fmt"

	"facecapture/internal/camera"
	"facecapture/internal/config"
	"facecapture/internal/log"
	"facecapture/internal/registry"
	"facecapture/internal/status"
)

// newActivator は設定からカメラの要求窓口とプレビューを組み立てる
func newActivator(cfg *config.Config, display *status.Display) (*camera.Activator, *camera.Preview) {
	media := camera.NewDeviceMedia(
		camera.NewLinuxDiscovery(),
		camera.NewVideoSourceFactory(),
		camera.VideoSourceType(cfg.Camera.Source),
		camera.SourceConfig{
			Device: cfg.Camera.Device,
			Settings: camera.VideoSettings{
				Width:     cfg.Camera.Width,
				Height:    cfg.Camera.Height,
				FrameRate: cfg.Camera.FPS,
			},
		},
	)

	preview := camera.NewPreview()
	return camera.NewActivator(media, preview, display), preview
}

// newRegistry は登録サーバーのクライアントを作成し、認証情報があればログインする
func newRegistry(ctx context.Context, cfg *config.Config) (*registry.Client, error) {
	client, err := registry.NewClient(cfg.Registry)
	if err != nil {
		return nil, err
	}

	if cfg.Registry.Username == "" {
		return client, nil
	}

	if err := client.Login(ctx, cfg.Registry.Username, cfg.Registry.Password); err != nil {
		if errors.Is(err, registry.ErrLoginFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("登録サーバーに接続できません: %w", err)
	}
	return client, nil
}

// closeRegistry はログインしていればログアウトする
func closeRegistry(cfg *config.Config, client *registry.Client) {
	if client == nil || cfg.Registry.Username == "" {
		return
	}
	if err := client.Logout(context.Background()); err != nil {
		log.Warn("ログアウトに失敗", "error", err)
	}
}
