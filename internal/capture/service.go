// Package capture は名前とセクションを検証し、カメラの現在フレームを登録サーバーへ送る
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"

	"golang.org/x/sync/semaphore"

	"facecapture/internal/log"
	"facecapture/internal/registry"
	"facecapture/internal/snapshot"
)

// 利用者に見せるメッセージ
const (
	AlertNameRequired    = "Enter name"
	AlertSectionRequired = "Select section"
	StatusCameraNotReady = "Camera not ready"
	networkErrorPrefix   = "Network error: "
)

var (
	ErrNameRequired         = errors.New("名前が入力されていません")
	ErrSectionRequired      = errors.New("セクションが選択されていません")
	ErrCameraNotReady       = errors.New("カメラのフレームがまだありません")
	ErrSubmissionInProgress = errors.New("送信処理が実行中です")
)

// Form は撮影時に読み取る入力値
type Form struct {
	Name      string
	SectionID string
}

// Alerter は利用者に確認を求める通知
type Alerter interface {
	Alert(message string)
}

// AlertFunc は関数をAlerterとして使う
type AlertFunc func(message string)

// Alert は f(message) を呼ぶ
func (f AlertFunc) Alert(message string) { f(message) }

// FrameSource はプレビュー中の映像
// 1回の撮影で読むフレームは1枚だけで、キャンバスの大きさもそのフレームから決める。
type FrameSource interface {
	CurrentFrame() (image.Image, error)
}

// Submitter は撮影内容を送信する
type Submitter interface {
	Submit(ctx context.Context, payload registry.Payload) (registry.Result, error)
}

// StatusWriter はステータス表示
type StatusWriter interface {
	Set(text string)
}

// Service は撮影と送信を行う
type Service struct {
	frames    FrameSource
	submitter Submitter
	status    StatusWriter
	canvas    *snapshot.Canvas
	inFlight  *semaphore.Weighted
}

// NewService は新しいServiceを作成する
func NewService(frames FrameSource, submitter Submitter, status StatusWriter, canvas *snapshot.Canvas) *Service {
	if canvas == nil {
		canvas = snapshot.NewCanvas()
	}
	return &Service{
		frames:    frames,
		submitter: submitter,
		status:    status,
		canvas:    canvas,
		inFlight:  semaphore.NewWeighted(1),
	}
}

// CanvasSize は直近の撮影で使ったキャンバスのサイズを返す
func (s *Service) CanvasSize() (width, height int) {
	return s.canvas.Size()
}

// CaptureFace は入力を検証し、現在フレームを送信して応答を表示する
//
// 名前、セクションの順に検証し、欠けていれば alerter に通知して何も送らない。
// 送信は1回だけで、同時に実行できる送信は1つまで。
// 返すエラーは送信前に中断した場合と通信に失敗した場合のみ。
func (s *Service) CaptureFace(ctx context.Context, form Form, alerter Alerter) (registry.Result, error) {
	if form.Name == "" {
		alerter.Alert(AlertNameRequired)
		return registry.Result{}, ErrNameRequired
	}
	if form.SectionID == "" {
		alerter.Alert(AlertSectionRequired)
		return registry.Result{}, ErrSectionRequired
	}

	if !s.inFlight.TryAcquire(1) {
		return registry.Result{}, ErrSubmissionInProgress
	}
	defer s.inFlight.Release(1)

	dataURI, err := s.snapshot()
	if err != nil {
		return registry.Result{}, err
	}

	payload := registry.Payload{
		Name:      form.Name,
		SectionID: form.SectionID,
		Image:     dataURI,
	}

	result, err := s.submitter.Submit(ctx, payload)
	if err != nil {
		log.Warn("撮影データの送信に失敗", "error", err)
		s.status.Set(networkErrorPrefix + err.Error())
		return registry.Result{}, fmt.Errorf("撮影データの送信に失敗: %w", err)
	}

	switch result.Kind {
	case registry.KindStatus:
		log.Info("登録に成功しました", "name", form.Name, "section_id", form.SectionID)
	case registry.KindError:
		log.Warn("登録サーバーがエラーを返しました", "error", result.Text, "http_status", result.HTTPStatus)
	case registry.KindMalformed:
		log.Warn("登録サーバーの応答を解釈できません", "http_status", result.HTTPStatus)
	}
	s.status.Set(result.Display())

	return result, nil
}

// snapshot は現在フレームをネイティブサイズで描画し、データURIにする
func (s *Service) snapshot() (string, error) {
	frame, err := s.frames.CurrentFrame()
	if err != nil {
		s.status.Set(StatusCameraNotReady)
		return "", fmt.Errorf("%w: %v", ErrCameraNotReady, err)
	}

	bounds := frame.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		s.status.Set(StatusCameraNotReady)
		return "", ErrCameraNotReady
	}

	s.canvas.Resize(bounds.Dx(), bounds.Dy())
	s.canvas.DrawImage(frame)

	uri, err := s.canvas.ToDataURL()
	if err != nil {
		return "", fmt.Errorf("画像の変換に失敗: %w", err)
	}
	return uri, nil
}
