package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSourceInactive はソースが開始されていないことを示す
	ErrSourceInactive = errors.New("カメラが非アクティブです")
	// ErrNoFrame はまだフレームを受信していないことを示す
	ErrNoFrame = errors.New("フレームがまだ取得されていません")
)

// Constraints はメディア要求の制約
type Constraints struct {
	Video bool
	Audio bool
}

// MediaError はメディア要求の失敗理由
//
// Name はDOMExceptionと同じ名前を使う (NotAllowedError, NotFoundError など)。
type MediaError struct {
	Name    string
	Message string
	Err     error
}

// メディアエラー名
const (
	NotAllowedError   = "NotAllowedError"
	NotFoundError     = "NotFoundError"
	NotReadableError  = "NotReadableError"
	NotSupportedError = "NotSupportedError"
	TypeError         = "TypeError"
)

func (e *MediaError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// MediaDevices はカメラストリームを要求する窓口
type MediaDevices interface {
	// GetUserMedia は制約を満たす開始済みのストリームを返す
	GetUserMedia(ctx context.Context, constraints Constraints) (VideoSource, error)
}

// DeviceMedia はローカルのV4L2デバイスからストリームを取得する MediaDevices 実装
type DeviceMedia struct {
	discovery  Discovery
	factory    VideoSourceFactory
	sourceType VideoSourceType
	config     SourceConfig
}

// NewDeviceMedia は新しいDeviceMediaを作成する
// config.Device が空の場合は検出された最初のカメラを使う。
func NewDeviceMedia(discovery Discovery, factory VideoSourceFactory, sourceType VideoSourceType, config SourceConfig) *DeviceMedia {
	return &DeviceMedia{
		discovery:  discovery,
		factory:    factory,
		sourceType: sourceType,
		config:     config,
	}
}

// GetUserMedia はカメラを選択して開始する
func (m *DeviceMedia) GetUserMedia(ctx context.Context, constraints Constraints) (VideoSource, error) {
	if !constraints.Video && !constraints.Audio {
		return nil, &MediaError{Name: TypeError, Message: "At least one of audio and video must be requested"}
	}
	if constraints.Audio {
		return nil, &MediaError{Name: NotSupportedError, Message: "Audio capture is not supported"}
	}

	device, err := m.selectDevice(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.discovery.CheckAccess(ctx, device); err != nil {
		return nil, accessError(err)
	}

	config := m.config
	config.Device = device
	source, err := m.factory.CreateSource(m.sourceType, config)
	if err != nil {
		return nil, &MediaError{Name: NotSupportedError, Message: err.Error(), Err: err}
	}

	if err := source.Start(ctx); err != nil {
		return nil, &MediaError{Name: NotReadableError, Message: "Could not start video source", Err: err}
	}

	return source, nil
}

// selectDevice は使用するデバイスを決める
func (m *DeviceMedia) selectDevice(ctx context.Context) (string, error) {
	if m.config.Device != "" {
		return m.config.Device, nil
	}

	devices, err := m.discovery.ScanDevices(ctx)
	if err != nil {
		return "", &MediaError{Name: NotFoundError, Message: "Requested device not found", Err: err}
	}
	if len(devices) == 0 {
		return "", &MediaError{Name: NotFoundError, Message: "Requested device not found"}
	}
	return devices[0], nil
}

// accessError はOSのエラーをメディアエラーに変換する
func accessError(err error) error {
	switch {
	case errors.Is(err, os.ErrPermission):
		return &MediaError{Name: NotAllowedError, Message: "Permission denied", Err: err}
	case errors.Is(err, os.ErrNotExist):
		return &MediaError{Name: NotFoundError, Message: "Requested device not found", Err: err}
	default:
		return &MediaError{Name: NotReadableError, Message: fmt.Sprintf("Could not open device: %v", err), Err: err}
	}
}
