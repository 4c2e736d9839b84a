package camera

import (
	"context"
	"sync"
)

// VideoSourceType はソースタイプを定義
type VideoSourceType string

const (
	// SourceTypeUSBCamera はffmpeg経由のUSBカメラソースを表す
	SourceTypeUSBCamera VideoSourceType = "usb_camera"
	// SourceTypeGoCV はOpenCV(gocv)経由のカメラソースを表す
	SourceTypeGoCV VideoSourceType = "gocv"
	// SourceTypeMock はテスト用ソースを表す
	SourceTypeMock VideoSourceType = "mock"
)

// VideoSource はカメラ映像のストリームを表す
//
// フレームはJPEGエンコード済みのバイト列として流れる。
type VideoSource interface {
	// 基本操作
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsAvailable(ctx context.Context) bool

	// ストリーミング
	GetFrameChannel() <-chan []byte
	GetErrorChannel() <-chan error

	// LatestFrame はストリーム中の最新フレームのコピーを返す
	LatestFrame(ctx context.Context) ([]byte, error)

	// メタデータ
	GetInfo() VideoSourceInfo
	GetCurrentSettings() VideoSettings

	// ステータス取得
	GetStatus() Status
}

// VideoSourceInfo はソース情報を表す
type VideoSourceInfo struct {
	ID          string
	Name        string
	Type        VideoSourceType
	Driver      string
	Description string
	Device      string // デバイスパス（USBカメラ等）
}

// VideoSettings は要求する動画設定
//
// Width/Height は要求値であり、実際のフレームサイズはデバイス次第。
type VideoSettings struct {
	Width     int
	Height    int
	FrameRate int
	Quality   int
}

// BaseVideoSource は共通実装を提供
type BaseVideoSource struct {
	info      VideoSourceInfo
	settings  VideoSettings
	frameChan chan []byte
	errorChan chan error
	status    Status
	mu        sync.RWMutex

	// 最新フレーム保持用
	latestFrame []byte
	latestMutex sync.RWMutex
}

func newBaseVideoSource(info VideoSourceInfo, settings VideoSettings) BaseVideoSource {
	return BaseVideoSource{
		info:      info,
		settings:  settings,
		frameChan: make(chan []byte, 10),
		errorChan: make(chan error, 5),
		status:    StatusInactive,
	}
}

// GetInfo は基本情報を返す
func (b *BaseVideoSource) GetInfo() VideoSourceInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.info
}

// GetCurrentSettings は現在の設定を返す
func (b *BaseVideoSource) GetCurrentSettings() VideoSettings {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.settings
}

// GetStatus はステータスを返す
func (b *BaseVideoSource) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

// GetFrameChannel はフレームチャンネルを返す
func (b *BaseVideoSource) GetFrameChannel() <-chan []byte {
	return b.frameChan
}

// GetErrorChannel はエラーチャンネルを返す
func (b *BaseVideoSource) GetErrorChannel() <-chan error {
	return b.errorChan
}

// LatestFrame は最新フレームのコピーを返す
func (b *BaseVideoSource) LatestFrame(_ context.Context) ([]byte, error) {
	if b.GetStatus() != StatusActive {
		return nil, ErrSourceInactive
	}

	b.latestMutex.RLock()
	defer b.latestMutex.RUnlock()

	if b.latestFrame == nil {
		return nil, ErrNoFrame
	}

	frame := make([]byte, len(b.latestFrame))
	copy(frame, b.latestFrame)
	return frame, nil
}

// storeLatest は最新フレームを保存する
func (b *BaseVideoSource) storeLatest(frame []byte) {
	b.latestMutex.Lock()
	b.latestFrame = make([]byte, len(frame))
	copy(b.latestFrame, frame)
	b.latestMutex.Unlock()
}

// clearLatest は保持フレームを破棄する
func (b *BaseVideoSource) clearLatest() {
	b.latestMutex.Lock()
	b.latestFrame = nil
	b.latestMutex.Unlock()
}

// publish はフレームを保存して転送する。チャンネルがフルなら古いフレームを捨てる
func (b *BaseVideoSource) publish(frame []byte, stopCh <-chan struct{}) bool {
	b.storeLatest(frame)

	select {
	case b.frameChan <- frame:
		return true
	case <-stopCh:
		return false
	default:
		select {
		case <-b.frameChan:
		default:
		}
		select {
		case b.frameChan <- frame:
			return true
		case <-stopCh:
			return false
		}
	}
}

// publishError はエラーを転送する。チャンネルがフルなら古いエラーを捨てる
func (b *BaseVideoSource) publishError(err error, stopCh <-chan struct{}) bool {
	select {
	case b.errorChan <- err:
		return true
	case <-stopCh:
		return false
	default:
		select {
		case <-b.errorChan:
		default:
		}
		select {
		case b.errorChan <- err:
			return true
		case <-stopCh:
			return false
		}
	}
}
