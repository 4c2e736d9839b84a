package camera

import (
	"context"
	"image/color"
	"testing"
	"time"
)

func TestPreview_EmptyHasZeroSize(t *testing.T) {
	preview := NewPreview()

	w, h := preview.VideoSize()
	if w != 0 || h != 0 {
		t.Errorf("Expected 0x0 without a stream, got %dx%d", w, h)
	}
	if _, err := preview.CurrentFrame(); err == nil {
		t.Error("Expected error without a stream")
	}
}

func TestPreview_SizeFollowsLatestFrame(t *testing.T) {
	ctx := context.Background()
	source := NewMockSource(320, 240, color.RGBA{G: 255, A: 255})
	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	preview := NewPreview()
	preview.Attach(source)

	w, h := preview.VideoSize()
	if w != 320 || h != 240 {
		t.Errorf("Expected 320x240, got %dx%d", w, h)
	}

	source.SetSize(160, 120)
	if err := source.Emit(); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	w, h = preview.VideoSize()
	if w != 160 || h != 120 {
		t.Errorf("Expected 160x120 after resize, got %dx%d", w, h)
	}

	img, err := preview.CurrentFrame()
	if err != nil {
		t.Fatalf("CurrentFrame failed: %v", err)
	}
	if img.Bounds().Dx() != 160 || img.Bounds().Dy() != 120 {
		t.Errorf("Unexpected frame bounds: %v", img.Bounds())
	}
}

func TestPreview_NoFrameYet(t *testing.T) {
	ctx := context.Background()
	source := NewMockSource(320, 240, color.White)
	source.SetEmitOnStart(false)
	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	preview := NewPreview()
	preview.Attach(source)

	if w, h := preview.VideoSize(); w != 0 || h != 0 {
		t.Errorf("Expected 0x0 before the first frame, got %dx%d", w, h)
	}
}

func TestPreview_SubscribeReceivesFrames(t *testing.T) {
	ctx := context.Background()
	source := NewMockSource(32, 32, color.White)
	source.SetEmitOnStart(false)
	if err := source.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	preview := NewPreview()
	frames, cancel := preview.Subscribe()
	defer cancel()

	preview.Attach(source)
	if err := source.Emit(); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case frame := <-frames:
		if len(frame) < 4 || frame[0] != 0xFF || frame[1] != 0xD8 {
			t.Error("Expected a JPEG frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a frame")
	}
}

func TestPreview_AttachReplacesAndStopsPrevious(t *testing.T) {
	ctx := context.Background()
	first := NewMockSource(32, 32, color.White)
	second := NewMockSource(64, 64, color.Black)
	_ = first.Start(ctx)
	_ = second.Start(ctx)

	preview := NewPreview()
	preview.Attach(first)
	preview.Attach(second)

	if preview.Source() != second {
		t.Error("Expected the latest stream to be attached")
	}
	if first.StopCalls() != 1 {
		t.Errorf("Expected previous stream to be stopped once, got %d", first.StopCalls())
	}

	detached := preview.Detach()
	if detached != second {
		t.Error("Expected Detach to return the attached stream")
	}
	if second.StopCalls() != 0 {
		t.Error("Detach must leave stopping to the caller")
	}
}
