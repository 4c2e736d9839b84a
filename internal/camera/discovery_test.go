package camera

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestMockDiscovery_Basic(t *testing.T) {
	ctx := context.Background()
	discovery := NewMockDiscovery([]string{"/dev/video0", "/dev/video2"})

	devices, err := discovery.ScanDevices(ctx)
	if err != nil {
		t.Fatalf("ScanDevices failed: %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(devices))
	}

	if !discovery.IsDeviceAvailable(ctx, "/dev/video0") {
		t.Error("Expected /dev/video0 to be available")
	}

	info, err := discovery.GetDeviceInfo(ctx, "/dev/video2")
	if err != nil {
		t.Fatalf("GetDeviceInfo failed: %v", err)
	}
	if info.Name == "" {
		t.Error("Expected device name to be set")
	}

	// 存在しないデバイスの情報取得
	if _, err := discovery.GetDeviceInfo(ctx, "/dev/video99"); err == nil {
		t.Error("Expected error for non-existent device")
	}
}

func TestMockDiscovery_AddRemoveDevice(t *testing.T) {
	ctx := context.Background()
	discovery := NewMockDiscovery([]string{"/dev/video0"})

	discovery.AddDevice("/dev/video1")
	discovery.AddDevice("/dev/video1") // 重複追加は無視される

	devices, _ := discovery.ScanDevices(ctx)
	if len(devices) != 2 {
		t.Fatalf("Expected 2 devices after addition, got %d", len(devices))
	}

	discovery.RemoveDevice("/dev/video0")

	devices, _ = discovery.ScanDevices(ctx)
	if len(devices) != 1 {
		t.Fatalf("Expected 1 device after removal, got %d", len(devices))
	}

	if discovery.IsDeviceAvailable(ctx, "/dev/video0") {
		t.Error("Expected /dev/video0 to be unavailable after removal")
	}
}

func TestMockDiscovery_CheckAccess(t *testing.T) {
	ctx := context.Background()
	discovery := NewMockDiscovery([]string{"/dev/video0"})

	if err := discovery.CheckAccess(ctx, "/dev/video0"); err != nil {
		t.Fatalf("Expected access to be granted, got %v", err)
	}

	discovery.DenyAccess("/dev/video0")
	if err := discovery.CheckAccess(ctx, "/dev/video0"); !errors.Is(err, os.ErrPermission) {
		t.Errorf("Expected permission error, got %v", err)
	}

	if err := discovery.CheckAccess(ctx, "/dev/video5"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestLinuxDiscovery_RejectsNonVideoPaths(t *testing.T) {
	ctx := context.Background()
	discovery := NewLinuxDiscovery()

	// /dev/null は存在するがV4L2デバイスではない
	if discovery.IsDeviceAvailable(ctx, "/dev/null") {
		t.Error("Expected /dev/null to be rejected")
	}

	if _, err := discovery.GetDeviceInfo(ctx, "/dev/video99"); err == nil {
		t.Error("Expected error for non-existent device")
	}
}

func TestExtractDeviceNumber(t *testing.T) {
	testCases := []struct {
		device string
		want   int
	}{
		{"/dev/video0", 0},
		{"/dev/video12", 12},
		{"/dev/null", 0},
	}

	for _, tc := range testCases {
		if got := extractDeviceNumber(tc.device); got != tc.want {
			t.Errorf("extractDeviceNumber(%q) = %d, want %d", tc.device, got, tc.want)
		}
	}
}

func TestParsePixelFormats(t *testing.T) {
	output := `ioctl: VIDIOC_ENUM_FMT
	Type: Video Capture

	[0]: 'MJPG' (Motion-JPEG, compressed)
	[1]: 'YUYV' (YUYV 4:2:2)
`
	formats := parsePixelFormats(output)
	if len(formats) != 2 {
		t.Fatalf("Expected 2 formats, got %v", formats)
	}
	if formats[0] != "MJPG" || formats[1] != "YUYV" {
		t.Errorf("Unexpected formats: %v", formats)
	}
}
