package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"sync"
)

// MockSource はテスト用の単色フレームを出すソース
type MockSource struct {
	BaseVideoSource

	fill        color.Color
	width       int
	height      int
	emitOnStart bool
	startErr    error
	stopCh      chan struct{}
	stopCalls   int
	lock        sync.Mutex
}

// NewMockSource は指定サイズ・色のフレームを出すMockSourceを作成する
// Start 直後に1フレームを出す。
func NewMockSource(width, height int, fill color.Color) *MockSource {
	info := VideoSourceInfo{
		ID:     generateSourceID(),
		Name:   "Mock Camera",
		Type:   SourceTypeMock,
		Driver: "mock",
		Device: "/dev/video0",
	}
	return &MockSource{
		BaseVideoSource: newBaseVideoSource(info, VideoSettings{Width: width, Height: height, FrameRate: 15}),
		fill:            fill,
		width:           width,
		height:          height,
		emitOnStart:     true,
		stopCh:          make(chan struct{}),
	}
}

// SetEmitOnStart はStart直後にフレームを出すかを設定する
func (m *MockSource) SetEmitOnStart(emit bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.emitOnStart = emit
}

// SetStartError はStartが返すエラーを設定する
func (m *MockSource) SetStartError(err error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.startErr = err
}

// SetSize は以降に出すフレームのサイズを変更する
func (m *MockSource) SetSize(width, height int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.width = width
	m.height = height
}

// StopCalls はStopが呼ばれた回数を返す
func (m *MockSource) StopCalls() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.stopCalls
}

// Start はモックソースを開始する
func (m *MockSource) Start(_ context.Context) error {
	m.lock.Lock()
	startErr, emit := m.startErr, m.emitOnStart
	m.lock.Unlock()

	m.mu.Lock()
	if startErr != nil {
		m.status = StatusError
		m.mu.Unlock()
		return startErr
	}
	m.status = StatusActive
	m.mu.Unlock()

	if emit {
		return m.Emit()
	}
	return nil
}

// Stop はモックソースを停止する
func (m *MockSource) Stop(_ context.Context) error {
	m.lock.Lock()
	m.stopCalls++
	m.lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusInactive
	m.clearLatest()
	return nil
}

// IsAvailable は常にtrue
func (m *MockSource) IsAvailable(_ context.Context) bool {
	return true
}

// Emit は現在のサイズで1フレームを出す
func (m *MockSource) Emit() error {
	m.lock.Lock()
	width, height, fill := m.width, m.height, m.fill
	m.lock.Unlock()

	frame, err := EncodeSolidJPEG(width, height, fill)
	if err != nil {
		return err
	}
	m.publish(frame, m.stopCh)
	return nil
}

// EncodeSolidJPEG は単色のJPEG画像を生成する
func EncodeSolidJPEG(width, height int, fill color.Color) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}
	return buf.Bytes(), nil
}

// MockMedia はテスト用のMediaDevices実装
type MockMedia struct {
	mu          sync.Mutex
	source      VideoSource
	err         error
	calls       int
	constraints []Constraints
	block       chan struct{}
}

// NewMockMedia は常に source を返すMockMediaを作成する
func NewMockMedia(source VideoSource) *MockMedia {
	return &MockMedia{source: source}
}

// NewFailingMockMedia は常に err で失敗するMockMediaを作成する
func NewFailingMockMedia(err error) *MockMedia {
	return &MockMedia{err: err}
}

// Block はRelease が呼ばれるまでGetUserMediaを待たせる
func (m *MockMedia) Block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = make(chan struct{})
}

// Release はBlockで待たせた要求を進める
func (m *MockMedia) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.block != nil {
		close(m.block)
		m.block = nil
	}
}

// Calls はGetUserMediaの呼び出し回数を返す
func (m *MockMedia) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastConstraints は最後に要求された制約を返す
func (m *MockMedia) LastConstraints() (Constraints, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.constraints) == 0 {
		return Constraints{}, false
	}
	return m.constraints[len(m.constraints)-1], true
}

// GetUserMedia は設定された結果を返す
func (m *MockMedia) GetUserMedia(ctx context.Context, constraints Constraints) (VideoSource, error) {
	m.mu.Lock()
	m.calls++
	m.constraints = append(m.constraints, constraints)
	block, source, err := m.block, m.source, m.err
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if err := source.Start(ctx); err != nil {
		return nil, err
	}
	return source, nil
}
