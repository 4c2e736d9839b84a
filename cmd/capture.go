package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"facecapture/internal/camera"
	"facecapture/internal/capture"
	"facecapture/internal/log"
	"facecapture/internal/registry"
	"facecapture/internal/snapshot"
	"facecapture/internal/status"
)

var (
	captureName    string
	captureSection string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "カメラを起動して1枚撮影し、登録サーバーへ送る",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCapture(cmd.Context())
	},
}

func init() {
	captureCmd.Flags().StringVar(&captureName, "name", "", "登録する名前")
	captureCmd.Flags().StringVar(&captureSection, "section", "", "登録先のセクションID")
	rootCmd.AddCommand(captureCmd)
}

func runCapture(ctx context.Context) error {
	client, err := newRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRegistry(cfg, client)

	display := status.NewDisplay()
	activator, preview := newActivator(cfg, display)

	if err := activator.Activate(ctx); err != nil {
		return fmt.Errorf("カメラを開始できません: %w", err)
	}
	defer func() {
		if err := activator.StopCamera(context.Background()); err != nil {
			log.Warn("カメラの停止に失敗", "error", err)
		}
	}()

	if err := waitForFrame(ctx, preview, cfg.Camera.WarmupTimeout); err != nil {
		return err
	}

	svc := capture.NewService(preview, client, display, snapshot.NewCanvas())
	alerter := capture.AlertFunc(func(message string) {
		fmt.Fprintln(os.Stderr, message)
	})

	result, err := svc.CaptureFace(ctx, capture.Form{Name: captureName, SectionID: captureSection}, alerter)
	if err != nil {
		if text := display.Text(); text != "" && text != camera.StatusTextStarted {
			fmt.Println(text)
		}
		return err
	}

	fmt.Println(display.Text())
	if result.Kind != registry.KindStatus {
		return fmt.Errorf("登録に失敗しました: %s", result.Display())
	}
	return nil
}

// waitForFrame は最初のフレームが届くまでスピナーを出して待つ
func waitForFrame(ctx context.Context, preview *camera.Preview, timeout time.Duration) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("カメラの映像を待っています"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer func() { _ = bar.Finish() }()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if w, h := preview.VideoSize(); w > 0 && h > 0 {
			log.Debug("最初のフレームを受信しました", "width", w, "height", h)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("カメラの映像が届きません: %w", ctx.Err())
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
}
