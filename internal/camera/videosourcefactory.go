package camera

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// SourceConfig はソース作成設定
type SourceConfig struct {
	Device   string        // デバイスパス
	Settings VideoSettings // 設定
}

// VideoSourceFactory はソース作成ファクトリー
type VideoSourceFactory interface {
	CreateSource(sourceType VideoSourceType, config SourceConfig) (VideoSource, error)
	GetSupportedTypes() []VideoSourceType
}

// SourceCreator はソース作成関数の型
type SourceCreator func(config SourceConfig) (VideoSource, error)

var (
	builtinMu sync.Mutex
	builtins  = map[VideoSourceType]SourceCreator{}
)

// registerBuiltin はビルドタグ付きのソースを標準ファクトリーに登録する
func registerBuiltin(sourceType VideoSourceType, creator SourceCreator) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtins[sourceType] = creator
}

// DefaultVideoSourceFactory は標準実装
type DefaultVideoSourceFactory struct {
	creators map[VideoSourceType]SourceCreator
}

// NewVideoSourceFactory は新しいファクトリーを作成する
func NewVideoSourceFactory() *DefaultVideoSourceFactory {
	factory := &DefaultVideoSourceFactory{
		creators: make(map[VideoSourceType]SourceCreator),
	}

	// USBカメラの作成関数を登録
	factory.Register(SourceTypeUSBCamera, NewUSBCameraSourceFromConfig)

	builtinMu.Lock()
	for sourceType, creator := range builtins {
		factory.Register(sourceType, creator)
	}
	builtinMu.Unlock()

	return factory
}

// Register はソース作成関数を登録する
func (f *DefaultVideoSourceFactory) Register(sourceType VideoSourceType, creator SourceCreator) {
	f.creators[sourceType] = creator
}

// CreateSource はソースを作成する
func (f *DefaultVideoSourceFactory) CreateSource(sourceType VideoSourceType, config SourceConfig) (VideoSource, error) {
	creator, exists := f.creators[sourceType]
	if !exists {
		return nil, fmt.Errorf("サポートされていないソースタイプ: %s", sourceType)
	}

	return creator(config)
}

// GetSupportedTypes はサポートされているソースタイプを名前順で返す
func (f *DefaultVideoSourceFactory) GetSupportedTypes() []VideoSourceType {
	types := make([]VideoSourceType, 0, len(f.creators))
	for sourceType := range f.creators {
		types = append(types, sourceType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// withDefaults は未指定の設定値を補完する
func withDefaults(settings VideoSettings) VideoSettings {
	if settings.Width <= 0 {
		settings.Width = 1280
	}
	if settings.Height <= 0 {
		settings.Height = 720
	}
	if settings.FrameRate <= 0 {
		settings.FrameRate = 15
	}
	if settings.Quality <= 0 {
		settings.Quality = 3
	}
	return settings
}

// NewUSBCameraSourceFromConfig は設定からUSBCameraSourceを作成する
func NewUSBCameraSourceFromConfig(config SourceConfig) (VideoSource, error) {
	if config.Device == "" {
		return nil, fmt.Errorf("USBカメラの作成にはデバイスパスが必要です")
	}

	// デバイス名を取得（取れなければパスから生成）
	discovery := NewLinuxDiscovery()
	name := fmt.Sprintf("USB Camera (%s)", config.Device)
	if deviceInfo, err := discovery.GetDeviceInfo(context.TODO(), config.Device); err == nil && deviceInfo != nil {
		name = deviceInfo.Name
	}

	info := VideoSourceInfo{
		ID:          generateSourceID(),
		Name:        name,
		Type:        SourceTypeUSBCamera,
		Driver:      "v4l2",
		Description: fmt.Sprintf("USB Camera: %s", name),
		Device:      config.Device,
	}

	return NewUSBCameraSource(info, withDefaults(config.Settings)), nil
}

// generateSourceID はユニークなソースIDを生成する
func generateSourceID() string {
	return uuid.New().String()
}
