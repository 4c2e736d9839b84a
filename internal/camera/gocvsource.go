//go:build gocv

package camera

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

func init() {
	registerBuiltin(SourceTypeGoCV, NewGoCVSourceFromConfig)
}

// GoCVSource はOpenCVのVideoCaptureでカメラを読む VideoSource 実装
//
// -tags gocv でビルドした場合のみ利用できる。
type GoCVSource struct {
	BaseVideoSource

	capture *gocv.VideoCapture
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewGoCVSourceFromConfig は設定からGoCVSourceを作成する
func NewGoCVSourceFromConfig(config SourceConfig) (VideoSource, error) {
	if config.Device == "" {
		return nil, fmt.Errorf("gocvソースの作成にはデバイスが必要です")
	}

	info := VideoSourceInfo{
		ID:          generateSourceID(),
		Name:        fmt.Sprintf("OpenCV Camera (%s)", config.Device),
		Type:        SourceTypeGoCV,
		Driver:      "opencv",
		Description: "OpenCV VideoCapture",
		Device:      config.Device,
	}

	return &GoCVSource{
		BaseVideoSource: newBaseVideoSource(info, withDefaults(config.Settings)),
		stopCh:          make(chan struct{}),
	}, nil
}

// openTarget は /dev/videoN を番号に変換する。それ以外はそのまま渡す
func openTarget(device string) interface{} {
	if strings.HasPrefix(device, "/dev/video") {
		if n, err := strconv.Atoi(strings.TrimPrefix(device, "/dev/video")); err == nil {
			return n
		}
	}
	return device
}

// Start はカメラを開く
func (s *GoCVSource) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusActive {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(openTarget(s.info.Device))
	if err != nil {
		s.status = StatusError
		return fmt.Errorf("VideoCaptureのオープンに失敗: %w", err)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(s.settings.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(s.settings.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(s.settings.FrameRate))

	s.capture = capture
	s.wg.Add(1)
	go s.readLoop()

	s.status = StatusActive
	return nil
}

// Stop はカメラを閉じる
func (s *GoCVSource) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusActive {
		s.status = StatusInactive
		return nil
	}

	close(s.stopCh)
	s.wg.Wait()
	s.stopCh = make(chan struct{})

	if err := s.capture.Close(); err != nil {
		return fmt.Errorf("VideoCaptureのクローズに失敗: %w", err)
	}
	s.capture = nil
	s.clearLatest()

	s.status = StatusInactive
	return nil
}

// IsAvailable はデバイスを一時的に開けるか確認する
func (s *GoCVSource) IsAvailable(_ context.Context) bool {
	capture, err := gocv.OpenVideoCapture(openTarget(s.info.Device))
	if err != nil {
		return false
	}
	defer capture.Close()
	return capture.IsOpened()
}

func (s *GoCVSource) readLoop() {
	defer s.wg.Done()

	img := gocv.NewMat()
	defer img.Close()

	interval := time.Second / time.Duration(s.settings.FrameRate)
	params := []int{int(gocv.IMWriteJpegQuality), jpegQualityFromScale(s.settings.Quality)}

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if ok := s.capture.Read(&img); !ok || img.Empty() {
			time.Sleep(interval)
			continue
		}

		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, params)
		if err != nil {
			if !s.publishError(fmt.Errorf("JPEGエンコードに失敗: %w", err), s.stopCh) {
				return
			}
			continue
		}
		frame := append([]byte(nil), buf.GetBytes()...)
		buf.Close()

		if !s.publish(frame, s.stopCh) {
			return
		}
	}
}

// jpegQualityFromScale はffmpegの -q:v (2-31) をOpenCVの品質(0-100)に換算する
func jpegQualityFromScale(q int) int {
	if q <= 0 {
		return 90
	}
	quality := 100 - (q-1)*3
	if quality < 10 {
		quality = 10
	}
	return quality
}
