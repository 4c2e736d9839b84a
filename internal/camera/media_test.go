package camera

import (
	"context"
	"errors"
	"image/color"
	"testing"
)

// newMockFactory はmockソースだけを作るファクトリーを返す
func newMockFactory(source *MockSource, devices *[]string) *DefaultVideoSourceFactory {
	factory := &DefaultVideoSourceFactory{creators: make(map[VideoSourceType]SourceCreator)}
	factory.Register(SourceTypeMock, func(config SourceConfig) (VideoSource, error) {
		*devices = append(*devices, config.Device)
		return source, nil
	})
	return factory
}

func mediaErrorName(t *testing.T, err error) string {
	t.Helper()
	var mediaErr *MediaError
	if !errors.As(err, &mediaErr) {
		t.Fatalf("Expected *MediaError, got %T (%v)", err, err)
	}
	return mediaErr.Name
}

func TestDeviceMedia_UsesFirstDiscoveredDevice(t *testing.T) {
	ctx := context.Background()
	source := NewMockSource(640, 480, color.Black)
	var created []string
	media := NewDeviceMedia(
		NewMockDiscovery([]string{"/dev/video2", "/dev/video4"}),
		newMockFactory(source, &created),
		SourceTypeMock,
		SourceConfig{},
	)

	stream, err := media.GetUserMedia(ctx, Constraints{Video: true})
	if err != nil {
		t.Fatalf("GetUserMedia failed: %v", err)
	}

	if stream.GetStatus() != StatusActive {
		t.Errorf("Expected started stream, got %s", stream.GetStatus())
	}
	if len(created) != 1 || created[0] != "/dev/video2" {
		t.Errorf("Expected /dev/video2 to be opened, got %v", created)
	}
}

func TestDeviceMedia_ConfiguredDevice(t *testing.T) {
	ctx := context.Background()
	var created []string
	media := NewDeviceMedia(
		NewMockDiscovery([]string{"/dev/video0", "/dev/video4"}),
		newMockFactory(NewMockSource(64, 48, color.Black), &created),
		SourceTypeMock,
		SourceConfig{Device: "/dev/video4"},
	)

	if _, err := media.GetUserMedia(ctx, Constraints{Video: true}); err != nil {
		t.Fatalf("GetUserMedia failed: %v", err)
	}
	if len(created) != 1 || created[0] != "/dev/video4" {
		t.Errorf("Expected /dev/video4 to be opened, got %v", created)
	}
}

func TestDeviceMedia_Errors(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name        string
		devices     []string
		deny        string
		device      string
		constraints Constraints
		startErr    error
		sourceType  VideoSourceType
		want        string
	}{
		{"no video requested", []string{"/dev/video0"}, "", "", Constraints{}, nil, SourceTypeMock, TypeError},
		{"audio requested", []string{"/dev/video0"}, "", "", Constraints{Video: true, Audio: true}, nil, SourceTypeMock, NotSupportedError},
		{"no devices", nil, "", "", Constraints{Video: true}, nil, SourceTypeMock, NotFoundError},
		{"configured device missing", []string{"/dev/video0"}, "", "/dev/video9", Constraints{Video: true}, nil, SourceTypeMock, NotFoundError},
		{"permission denied", []string{"/dev/video0"}, "/dev/video0", "", Constraints{Video: true}, nil, SourceTypeMock, NotAllowedError},
		{"start failure", []string{"/dev/video0"}, "", "", Constraints{Video: true}, errors.New("busy"), SourceTypeMock, NotReadableError},
		{"unknown source type", []string{"/dev/video0"}, "", "", Constraints{Video: true}, nil, "ip_camera", NotSupportedError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			discovery := NewMockDiscovery(tc.devices)
			if tc.deny != "" {
				discovery.DenyAccess(tc.deny)
			}
			source := NewMockSource(64, 48, color.Black)
			source.SetStartError(tc.startErr)

			var created []string
			media := NewDeviceMedia(discovery, newMockFactory(source, &created), tc.sourceType, SourceConfig{Device: tc.device})

			_, err := media.GetUserMedia(ctx, tc.constraints)
			if err == nil {
				t.Fatal("Expected GetUserMedia to fail")
			}
			if name := mediaErrorName(t, err); name != tc.want {
				t.Errorf("Expected %s, got %s (%v)", tc.want, name, err)
			}
		})
	}
}

func TestMediaError_Text(t *testing.T) {
	if got := (&MediaError{Name: NotAllowedError}).Error(); got != "NotAllowedError" {
		t.Errorf("Unexpected text: %q", got)
	}
	if got := (&MediaError{Name: NotAllowedError, Message: "Permission denied"}).Error(); got != "NotAllowedError: Permission denied" {
		t.Errorf("Unexpected text: %q", got)
	}
}

func TestVideoSourceFactory(t *testing.T) {
	factory := NewVideoSourceFactory()

	found := false
	for _, sourceType := range factory.GetSupportedTypes() {
		if sourceType == SourceTypeUSBCamera {
			found = true
		}
	}
	if !found {
		t.Error("Expected usb_camera to be supported")
	}

	if _, err := factory.CreateSource(SourceTypeUSBCamera, SourceConfig{}); err == nil {
		t.Error("Expected error for missing device path")
	}

	source, err := factory.CreateSource(SourceTypeUSBCamera, SourceConfig{Device: "/dev/video42"})
	if err != nil {
		t.Fatalf("CreateSource failed: %v", err)
	}
	settings := source.GetCurrentSettings()
	if settings.Width != 1280 || settings.Height != 720 || settings.FrameRate != 15 {
		t.Errorf("Expected default settings, got %+v", settings)
	}
	if source.GetInfo().ID == "" {
		t.Error("Expected source ID to be set")
	}
}
