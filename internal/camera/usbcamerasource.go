package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// USBCameraSource はffmpeg経由でUSBカメラを読む VideoSource 実装
type USBCameraSource struct {
	BaseVideoSource

	// V4L2キャプチャ用
	capturer *V4L2Capturer

	// 制御用
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup

	// ストリーミング用の内部チャンネル
	internalFrameChan chan []byte
	internalErrorChan chan error
}

// NewUSBCameraSource は新しいUSBCameraSourceを作成する
func NewUSBCameraSource(info VideoSourceInfo, settings VideoSettings) *USBCameraSource {
	capturer := NewV4L2Capturer(info.Device, settings.Width, settings.Height, settings.FrameRate, settings.Quality)

	return &USBCameraSource{
		BaseVideoSource:   newBaseVideoSource(info, settings),
		capturer:          capturer,
		internalFrameChan: make(chan []byte, 10),
		internalErrorChan: make(chan error, 5),
	}
}

// Start はカメラを開始する
//
// ストリームの寿命は ctx ではなく Stop で管理する。
func (s *USBCameraSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil // 既に開始済み
	}

	// デバイステストを実行
	if err := s.capturer.TestCapture(ctx); err != nil {
		s.status = StatusError
		return fmt.Errorf("カメラのテストキャプチャに失敗: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopCh = make(chan struct{})

	go s.capturer.StartStream(streamCtx, s.internalFrameChan, s.internalErrorChan)

	s.wg.Add(1)
	go s.forwardFrames(s.stopCh)

	s.status = StatusActive
	return nil
}

// Stop はカメラを停止する
func (s *USBCameraSource) Stop(_ context.Context) error {
	s.mu.Lock()
	cancel, stopCh := s.cancel, s.stopCh
	s.cancel = nil
	s.status = StatusInactive
	s.mu.Unlock()

	if cancel == nil {
		return nil // 既に停止済み
	}

	// ffmpegを終了させてから転送ゴルーチンを止める
	cancel()
	close(stopCh)
	s.wg.Wait()

	s.clearLatest()
	return nil
}

// IsAvailable はカメラが利用可能かチェックする
func (s *USBCameraSource) IsAvailable(ctx context.Context) bool {
	return s.capturer.IsDeviceAvailable(ctx)
}

// forwardFrames はキャプチャからフレームを転送する
func (s *USBCameraSource) forwardFrames(stopCh chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-stopCh:
			return

		case frame := <-s.internalFrameChan:
			if !s.publish(frame, stopCh) {
				return
			}

		case err := <-s.internalErrorChan:
			if errors.Is(err, ErrStreamEnded) {
				s.markFailed()
			}
			if !s.publishError(err, stopCh) {
				return
			}
		}
	}
}

// markFailed はストリームが途切れたソースをエラー状態にする
func (s *USBCameraSource) markFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusActive {
		s.status = StatusError
	}
}
