package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"facecapture/internal/log"
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// ErrStreamEnded はffmpegの出力が途切れたことを示す
var ErrStreamEnded = errors.New("カメラストリームが終了しました")

// V4L2Capturer はffmpegを使ってV4L2デバイスからJPEGフレームを取得する
type V4L2Capturer struct {
	devicePath string
	width      int
	height     int
	fps        int
	quality    int
}

// NewV4L2Capturer は新しいV4L2Capturerを作成する
func NewV4L2Capturer(devicePath string, width, height, fps, quality int) *V4L2Capturer {
	return &V4L2Capturer{
		devicePath: devicePath,
		width:      width,
		height:     height,
		fps:        fps,
		quality:    quality,
	}
}

// IsDeviceAvailable はV4L2デバイスが利用可能かチェックする
func (c *V4L2Capturer) IsDeviceAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "v4l2-ctl", "--device", c.devicePath, "--info")
	return cmd.Run() == nil
}

// CaptureFrameAsJPEG は1フレームをキャプチャしてJPEGバイト配列として返す
func (c *V4L2Capturer) CaptureFrameAsJPEG(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-i", c.devicePath,
		"-vframes", "1",
		"-f", "image2",
		"-c:v", "mjpeg",
		"-q:v", strconv.Itoa(c.quality),
		"-",
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("JPEGフレームキャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// TestCapture はデバイスが映像を出せるか確認する
func (c *V4L2Capturer) TestCapture(ctx context.Context) error {
	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	frame, err := c.CaptureFrameAsJPEG(testCtx)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(frame, jpegSOI) {
		return fmt.Errorf("JPEGではない出力を受信しました (%d bytes)", len(frame))
	}
	return nil
}

// StartStream は連続キャプチャ用のストリームを開始する
//
// ctx がキャンセルされるとffmpegプロセスも終了する。
func (c *V4L2Capturer) StartStream(ctx context.Context, frameChan chan<- []byte, errorChan chan<- error) {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", c.width, c.height),
		"-r", strconv.Itoa(c.fps),
		"-i", c.devicePath,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", strconv.Itoa(c.quality),
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		errorChan <- fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
		return
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		errorChan <- fmt.Errorf("stderrパイプの作成に失敗: %w", err)
		return
	}

	if err := cmd.Start(); err != nil {
		errorChan <- fmt.Errorf("ffmpegの起動に失敗: %w", err)
		return
	}

	// ffmpegの出力はデバッグログへ
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Debug("ffmpeg", "device", c.devicePath, "line", scanner.Text())
		}
	}()

	go func() {
		defer func() {
			_ = cmd.Wait() // コンテキストキャンセル時のエラーは無視
		}()

		err := readJPEGFrames(ctx, stdout, func(frame []byte) bool {
			select {
			case frameChan <- frame:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			errorChan <- fmt.Errorf("%w: フレーム読み取りエラー: %v", ErrStreamEnded, err)
			return
		}
		errorChan <- ErrStreamEnded
	}()
}

// readJPEGFrames はMJPEGストリームをSOI/EOIマーカーで分割し、フレーム毎にemitを呼ぶ
// emit が false を返すと読み取りを終了する。EOFでは nil を返す。
func readJPEGFrames(ctx context.Context, r io.Reader, emit func([]byte) bool) error {
	buffer := make([]byte, 256*1024)
	var frameBuffer bytes.Buffer

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := r.Read(buffer)
		if n > 0 {
			frameBuffer.Write(buffer[:n])

			frames, rest := splitJPEGFrames(frameBuffer.Bytes())
			for _, frame := range frames {
				if !emit(frame) {
					return nil
				}
			}
			remaining := append([]byte(nil), rest...)
			frameBuffer.Reset()
			frameBuffer.Write(remaining)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// splitJPEGFrames は完全なJPEGフレームを切り出し、未完成の残りを返す
func splitJPEGFrames(data []byte) (frames [][]byte, rest []byte) {
	for {
		start := bytes.Index(data, jpegSOI)
		if start == -1 {
			// 開始マーカーが無いデータは捨てる。末尾の0xFFは次の読み取りと繋がる可能性がある
			if len(data) > 0 && data[len(data)-1] == 0xFF {
				return frames, data[len(data)-1:]
			}
			return frames, nil
		}

		end := bytes.Index(data[start+2:], jpegEOI)
		if end == -1 {
			return frames, data[start:]
		}

		end += start + 2 + 2 // マーカーのサイズを含める
		frame := make([]byte, end-start)
		copy(frame, data[start:end])
		frames = append(frames, frame)

		data = data[end:]
	}
}
