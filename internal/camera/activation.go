package camera

import (
	"context"
	"fmt"

	"facecapture/internal/log"
)

// ステータス表示に書き込む固定メッセージ
const (
	StatusTextStarted = "Camera started"
	StatusTextStopped = "Camera stopped"
)

// Activator はカメラを要求してプレビューに取り付ける
type Activator struct {
	media   MediaDevices
	preview *Preview
	status  StatusWriter
}

// NewActivator は新しいActivatorを作成する
func NewActivator(media MediaDevices, preview *Preview, status StatusWriter) *Activator {
	return &Activator{
		media:   media,
		preview: preview,
		status:  status,
	}
}

// StartCamera は映像のみのストリームを非同期に要求する
//
// 結果を待たずに戻る。成否はステータス表示でのみ観測できる。
// 要求中の再呼び出しは防がない。
func (a *Activator) StartCamera(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		_ = a.Activate(ctx)
	}()
}

// Activate は映像のみのストリームを要求し、結果が出るまで待つ
//
// 成功時はプレビューに取り付けて "Camera started" を表示する。
// 失敗時は理由の文字列をそのまま表示し、同じエラーを返す。
func (a *Activator) Activate(ctx context.Context) error {
	stream, err := a.media.GetUserMedia(ctx, Constraints{Video: true, Audio: false})
	if err != nil {
		log.Warn("カメラの取得に失敗", "error", err)
		a.status.Set(err.Error())
		return err
	}

	a.preview.Attach(stream)
	info := stream.GetInfo()
	log.Info("カメラを開始しました", "source", info.ID, "device", info.Device, "name", info.Name)
	a.status.Set(StatusTextStarted)
	return nil
}

// StopCamera はプレビューからストリームを外して停止する
func (a *Activator) StopCamera(ctx context.Context) error {
	stream := a.preview.Detach()
	if stream != nil {
		if err := stream.Stop(ctx); err != nil {
			a.status.Set(err.Error())
			return fmt.Errorf("カメラの停止に失敗: %w", err)
		}
		log.Info("カメラを停止しました", "source", stream.GetInfo().ID)
	}

	a.status.Set(StatusTextStopped)
	return nil
}
