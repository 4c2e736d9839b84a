package capture

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/draw"

	"facecapture/internal/config"
	"facecapture/internal/registry"
	"facecapture/internal/snapshot"
	"facecapture/internal/status"
)

// fakeFrames は固定色のフレームを返す
type fakeFrames struct {
	mu     sync.Mutex
	width  int
	height int
	fill   color.Color
}

func newFakeFrames(width, height int, fill color.Color) *fakeFrames {
	return &fakeFrames{width: width, height: height, fill: fill}
}

func (f *fakeFrames) setSize(width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.width, f.height = width, height
}

func (f *fakeFrames) CurrentFrame() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.width == 0 || f.height == 0 {
		return nil, errors.New("no frame")
	}
	img := image.NewRGBA(image.Rect(0, 0, f.width, f.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: f.fill}, image.Point{}, draw.Src)
	return img, nil
}

// fakeSubmitter は送信内容を記録する
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []registry.Payload
	result   registry.Result
	err      error
	block    chan struct{}
	entered  chan struct{}
}

func (s *fakeSubmitter) Submit(ctx context.Context, payload registry.Payload) (registry.Result, error) {
	s.mu.Lock()
	s.payloads = append(s.payloads, payload)
	block, entered := s.block, s.entered
	s.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return s.result, s.err
}

func (s *fakeSubmitter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

// alertRecorder はアラートを記録する
type alertRecorder struct {
	messages []string
}

func (a *alertRecorder) Alert(message string) {
	a.messages = append(a.messages, message)
}

func newService(frames FrameSource, submitter Submitter) (*Service, *status.Display) {
	display := status.NewDisplay()
	return NewService(frames, submitter, display, snapshot.NewCanvas()), display
}

func TestCaptureFace_NameRequired(t *testing.T) {
	for _, section := range []string{"", "S1"} {
		submitter := &fakeSubmitter{}
		svc, _ := newService(newFakeFrames(64, 48, color.White), submitter)
		alerts := &alertRecorder{}

		_, err := svc.CaptureFace(context.Background(), Form{Name: "", SectionID: section}, alerts)

		if !errors.Is(err, ErrNameRequired) {
			t.Errorf("section=%q: expected ErrNameRequired, got %v", section, err)
		}
		if len(alerts.messages) != 1 || alerts.messages[0] != "Enter name" {
			t.Errorf("section=%q: unexpected alerts %v", section, alerts.messages)
		}
		if submitter.calls() != 0 {
			t.Errorf("section=%q: expected no request, got %d", section, submitter.calls())
		}
	}
}

func TestCaptureFace_SectionRequired(t *testing.T) {
	submitter := &fakeSubmitter{}
	svc, _ := newService(newFakeFrames(64, 48, color.White), submitter)
	alerts := &alertRecorder{}

	_, err := svc.CaptureFace(context.Background(), Form{Name: "Alice"}, alerts)

	if !errors.Is(err, ErrSectionRequired) {
		t.Errorf("Expected ErrSectionRequired, got %v", err)
	}
	if len(alerts.messages) != 1 || alerts.messages[0] != "Select section" {
		t.Errorf("Unexpected alerts %v", alerts.messages)
	}
	if submitter.calls() != 0 {
		t.Errorf("Expected no request, got %d", submitter.calls())
	}
}

func TestCaptureFace_PayloadShape(t *testing.T) {
	var (
		mu   sync.Mutex
		body map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Body is not JSON: %v", err)
		}
		_, _ = io.WriteString(w, `{"status":"Face registered successfully"}`)
	}))
	defer srv.Close()

	client, err := registry.NewClient(config.RegistryConfig{BaseURL: srv.URL, CapturePath: "/capture", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	svc, display := newService(newFakeFrames(64, 48, color.RGBA{R: 255, A: 255}), client)
	result, err := svc.CaptureFace(context.Background(), Form{Name: "Alice", SectionID: "S1"}, &alertRecorder{})
	if err != nil {
		t.Fatalf("CaptureFace failed: %v", err)
	}
	if result.Kind != registry.KindStatus {
		t.Errorf("Expected status reply, got %s", result.Kind)
	}
	if display.Text() != "Face registered successfully" {
		t.Errorf("Unexpected status text %q", display.Text())
	}

	mu.Lock()
	defer mu.Unlock()

	if body["name"] != "Alice" || body["section_id"] != "S1" {
		t.Errorf("Unexpected body %v", body)
	}
	if !strings.HasPrefix(body["image"], "data:image/jpeg;base64,") {
		t.Fatalf("Unexpected image %.40q", body["image"])
	}

	img, err := snapshot.DecodeDataURL(body["image"])
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("Expected 64x48 image, got %v", img.Bounds())
	}
	r, g, b, _ := img.At(32, 24).RGBA()
	if r>>8 < 200 || g>>8 > 60 || b>>8 > 60 {
		t.Errorf("Expected red frame content, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestCaptureFace_CanvasFollowsNativeSize(t *testing.T) {
	frames := newFakeFrames(640, 480, color.White)
	submitter := &fakeSubmitter{result: registry.Result{Kind: registry.KindStatus, Text: "ok"}}
	svc, _ := newService(frames, submitter)
	form := Form{Name: "Alice", SectionID: "S1"}

	if _, err := svc.CaptureFace(context.Background(), form, &alertRecorder{}); err != nil {
		t.Fatalf("CaptureFace failed: %v", err)
	}
	if w, h := svc.CanvasSize(); w != 640 || h != 480 {
		t.Errorf("Expected 640x480 canvas, got %dx%d", w, h)
	}

	frames.setSize(320, 180)
	if _, err := svc.CaptureFace(context.Background(), form, &alertRecorder{}); err != nil {
		t.Fatalf("CaptureFace failed: %v", err)
	}
	if w, h := svc.CanvasSize(); w != 320 || h != 180 {
		t.Errorf("Expected 320x180 canvas after resize, got %dx%d", w, h)
	}
}

// switchingFrames は読むたびに解像度が切り替わるフレームを返す
type switchingFrames struct {
	mu    sync.Mutex
	sizes []image.Point
	reads int
}

func (f *switchingFrames) CurrentFrame() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	size := f.sizes[f.reads%len(f.sizes)]
	f.reads++
	return image.NewRGBA(image.Rect(0, 0, size.X, size.Y)), nil
}

func TestCaptureFace_SizeComesFromCapturedFrame(t *testing.T) {
	frames := &switchingFrames{sizes: []image.Point{{X: 640, Y: 480}, {X: 1280, Y: 720}}}
	submitter := &fakeSubmitter{result: registry.Result{Kind: registry.KindStatus, Text: "ok"}}
	svc, _ := newService(frames, submitter)

	if _, err := svc.CaptureFace(context.Background(), Form{Name: "Alice", SectionID: "S1"}, &alertRecorder{}); err != nil {
		t.Fatalf("CaptureFace failed: %v", err)
	}

	if frames.reads != 1 {
		t.Errorf("Expected the frame to be read once, got %d", frames.reads)
	}
	if w, h := svc.CanvasSize(); w != 640 || h != 480 {
		t.Errorf("Expected 640x480 canvas, got %dx%d", w, h)
	}

	img, err := snapshot.DecodeDataURL(submitter.payloads[0].Image)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	if img.Bounds().Dx() != 640 || img.Bounds().Dy() != 480 {
		t.Errorf("Expected 640x480 image, got %v", img.Bounds())
	}
}

func TestCaptureFace_EmptyFrameIsNotReady(t *testing.T) {
	submitter := &fakeSubmitter{}
	frames := &switchingFrames{sizes: []image.Point{{}}}
	svc, display := newService(frames, submitter)

	_, err := svc.CaptureFace(context.Background(), Form{Name: "Alice", SectionID: "S1"}, &alertRecorder{})
	if !errors.Is(err, ErrCameraNotReady) {
		t.Errorf("Expected ErrCameraNotReady, got %v", err)
	}
	if display.Text() != "Camera not ready" {
		t.Errorf("Unexpected status text %q", display.Text())
	}
	if submitter.calls() != 0 {
		t.Errorf("Expected no request, got %d", submitter.calls())
	}
}

func TestCaptureFace_ResponseMapping(t *testing.T) {
	testCases := []struct {
		name   string
		result registry.Result
		want   string
	}{
		{"status", registry.Result{Kind: registry.KindStatus, Text: "ok", HTTPStatus: 200}, "ok"},
		{"error", registry.Result{Kind: registry.KindError, Text: "section not found", HTTPStatus: 400}, "section not found"},
		{"malformed", registry.Result{Kind: registry.KindMalformed, HTTPStatus: 502}, "Unexpected server response (HTTP 502)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, display := newService(newFakeFrames(32, 32, color.White), &fakeSubmitter{result: tc.result})

			result, err := svc.CaptureFace(context.Background(), Form{Name: "Alice", SectionID: "S1"}, &alertRecorder{})
			if err != nil {
				t.Fatalf("CaptureFace failed: %v", err)
			}
			if result.Kind != tc.result.Kind {
				t.Errorf("Expected kind %s, got %s", tc.result.Kind, result.Kind)
			}
			if display.Text() != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, display.Text())
			}
		})
	}
}

func TestCaptureFace_NetworkError(t *testing.T) {
	svc, display := newService(newFakeFrames(32, 32, color.White), &fakeSubmitter{err: errors.New("connection refused")})

	_, err := svc.CaptureFace(context.Background(), Form{Name: "Alice", SectionID: "S1"}, &alertRecorder{})
	if err == nil {
		t.Fatal("Expected error")
	}
	if display.Text() != "Network error: connection refused" {
		t.Errorf("Unexpected status text %q", display.Text())
	}
}

func TestCaptureFace_CameraNotReady(t *testing.T) {
	submitter := &fakeSubmitter{}
	svc, display := newService(newFakeFrames(0, 0, color.White), submitter)

	_, err := svc.CaptureFace(context.Background(), Form{Name: "Alice", SectionID: "S1"}, &alertRecorder{})
	if !errors.Is(err, ErrCameraNotReady) {
		t.Errorf("Expected ErrCameraNotReady, got %v", err)
	}
	if display.Text() != "Camera not ready" {
		t.Errorf("Unexpected status text %q", display.Text())
	}
	if submitter.calls() != 0 {
		t.Errorf("Expected no request, got %d", submitter.calls())
	}
}

func TestCaptureFace_SingleFlight(t *testing.T) {
	submitter := &fakeSubmitter{
		result:  registry.Result{Kind: registry.KindStatus, Text: "ok"},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	svc, _ := newService(newFakeFrames(32, 32, color.White), submitter)
	form := Form{Name: "Alice", SectionID: "S1"}

	done := make(chan error, 1)
	go func() {
		_, err := svc.CaptureFace(context.Background(), form, &alertRecorder{})
		done <- err
	}()

	select {
	case <-submitter.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the first submission")
	}

	if _, err := svc.CaptureFace(context.Background(), form, &alertRecorder{}); !errors.Is(err, ErrSubmissionInProgress) {
		t.Errorf("Expected ErrSubmissionInProgress, got %v", err)
	}

	close(submitter.block)
	if err := <-done; err != nil {
		t.Errorf("First submission failed: %v", err)
	}
	if submitter.calls() != 1 {
		t.Errorf("Expected one request, got %d", submitter.calls())
	}

	// 完了後は再び送信できる
	if _, err := svc.CaptureFace(context.Background(), form, &alertRecorder{}); err != nil {
		t.Errorf("Expected submission after release, got %v", err)
	}
}

func TestAlertFunc(t *testing.T) {
	var got string
	var alerter Alerter = AlertFunc(func(message string) { got = message })
	alerter.Alert("Enter name")
	if got != "Enter name" {
		t.Errorf("Expected message to be forwarded, got %q", got)
	}
}
