package camera

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	videoDevicePattern = regexp.MustCompile(`^/dev/video\d+$`)
	videoNumberPattern = regexp.MustCompile(`video(\d+)`)
)

// LinuxDiscovery はLinux環境でのカメラデバイス検出を実装する
type LinuxDiscovery struct{}

// NewLinuxDiscovery は新しいLinuxDiscoveryを作成する
func NewLinuxDiscovery() *LinuxDiscovery {
	return &LinuxDiscovery{}
}

// ScanDevices はシステム内の利用可能なカラーカメラを番号順に返す
func (d *LinuxDiscovery) ScanDevices(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	// デバイス番号でソート
	sort.Slice(matches, func(i, j int) bool {
		return extractDeviceNumber(matches[i]) < extractDeviceNumber(matches[j])
	})

	var devices []string
	seenNames := make(map[string]bool)
	for _, match := range matches {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		default:
		}

		if !d.IsDeviceAvailable(ctx, match) || !d.isColorCamera(ctx, match) {
			continue
		}

		// 同じ物理カメラの複数チャンネルは最も小さい番号だけ残す
		if name := d.getV4L2DeviceName(ctx, match); name != "" {
			if seenNames[name] {
				continue
			}
			seenNames[name] = true
		}

		devices = append(devices, match)
	}

	return devices, nil
}

// IsDeviceAvailable は指定されたデバイスが利用可能かチェックする
func (d *LinuxDiscovery) IsDeviceAvailable(ctx context.Context, device string) bool {
	if !videoDevicePattern.MatchString(device) {
		return false
	}
	return d.CheckAccess(ctx, device) == nil
}

// CheckAccess はデバイスファイルを読み取りで開けるか確認する
//
// 返るエラーは os.ErrNotExist / os.ErrPermission で判別できる。
func (d *LinuxDiscovery) CheckAccess(_ context.Context, device string) error {
	file, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	return file.Close()
}

// GetDeviceInfo はデバイスの詳細情報を取得する
func (d *LinuxDiscovery) GetDeviceInfo(ctx context.Context, device string) (*DeviceInfo, error) {
	if !d.IsDeviceAvailable(ctx, device) {
		return nil, fmt.Errorf("デバイスが利用できません: %s", device)
	}

	info := &DeviceInfo{
		Device:  device,
		Name:    d.generateDeviceName(ctx, device),
		Driver:  "v4l2",
		Formats: d.listFormats(ctx, device),
		Resolutions: []Resolution{
			{Width: 640, Height: 480},
			{Width: 1280, Height: 720},
			{Width: 1920, Height: 1080},
		},
	}

	return info, nil
}

// generateDeviceName はデバイスパスから表示名を生成する
func (d *LinuxDiscovery) generateDeviceName(ctx context.Context, device string) string {
	if realName := d.getV4L2DeviceName(ctx, device); realName != "" {
		return realName
	}

	// フォールバック: デバイス番号から生成
	return fmt.Sprintf("カメラ %d", extractDeviceNumber(device))
}

// getV4L2DeviceName はv4l2-ctlの "Card type" からカメラ名を取得する
func (d *LinuxDiscovery) getV4L2DeviceName(ctx context.Context, device string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--info").Output()
	if err != nil {
		return ""
	}

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Card type") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			if cardType := strings.TrimSpace(parts[1]); cardType != "" {
				return cardType
			}
		}
	}

	return ""
}

// listFormats はv4l2-ctlからピクセルフォーマット一覧を取得する
func (d *LinuxDiscovery) listFormats(ctx context.Context, device string) []string {
	output, err := exec.CommandContext(ctx, "v4l2-ctl", "--device", device, "--list-formats").Output()
	if err != nil {
		return nil
	}
	return parsePixelFormats(string(output))
}

// isColorCamera はYUYVかMJPGを出せるデバイスか判定する（IRカメラ等を除外）
func (d *LinuxDiscovery) isColorCamera(ctx context.Context, device string) bool {
	for _, format := range d.listFormats(ctx, device) {
		if format == "YUYV" || format == "MJPG" {
			return true
		}
	}
	return false
}

// parsePixelFormats は "[0]: 'MJPG' (Motion-JPEG, compressed)" 形式の行からフォーマット名を抽出する
func parsePixelFormats(output string) []string {
	var formats []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") {
			continue
		}
		start := strings.Index(line, "'")
		if start == -1 {
			continue
		}
		end := strings.Index(line[start+1:], "'")
		if end == -1 {
			continue
		}
		formats = append(formats, line[start+1:start+1+end])
	}
	return formats
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	matches := videoNumberPattern.FindStringSubmatch(device)
	if len(matches) < 2 {
		return 0
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0
	}

	return num
}

// MockDiscovery はテスト用のモックDiscovery実装
type MockDiscovery struct {
	mu          sync.RWMutex
	devices     []string
	deviceInfos map[string]*DeviceInfo
	denied      map[string]bool
}

// NewMockDiscovery は新しいMockDiscoveryを作成する
func NewMockDiscovery(devices []string) *MockDiscovery {
	m := &MockDiscovery{
		deviceInfos: make(map[string]*DeviceInfo),
		denied:      make(map[string]bool),
	}
	for _, device := range devices {
		m.AddDevice(device)
	}
	return m
}

// ScanDevices はモックデバイス一覧を返す
func (m *MockDiscovery) ScanDevices(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.devices...), nil
}

// IsDeviceAvailable はモックデバイスが利用可能かチェックする
func (m *MockDiscovery) IsDeviceAvailable(ctx context.Context, device string) bool {
	return m.CheckAccess(ctx, device) == nil
}

// CheckAccess は登録状況と拒否設定に応じたエラーを返す
func (m *MockDiscovery) CheckAccess(_ context.Context, device string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.deviceInfos[device]; !ok {
		return &os.PathError{Op: "open", Path: device, Err: os.ErrNotExist}
	}
	if m.denied[device] {
		return &os.PathError{Op: "open", Path: device, Err: os.ErrPermission}
	}
	return nil
}

// GetDeviceInfo はモックデバイス情報を取得する
func (m *MockDiscovery) GetDeviceInfo(_ context.Context, device string) (*DeviceInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, exists := m.deviceInfos[device]
	if !exists {
		return nil, fmt.Errorf("デバイスが見つかりません: %s", device)
	}

	// コピーを返す
	result := *info
	return &result, nil
}

// AddDevice はテスト用にデバイスを追加する
func (m *MockDiscovery) AddDevice(device string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.deviceInfos[device]; exists {
		return
	}

	m.devices = append(m.devices, device)
	m.deviceInfos[device] = &DeviceInfo{
		Device: device,
		Name:   fmt.Sprintf("テストカメラ %d", len(m.devices)),
		Driver: "mock",
		Resolutions: []Resolution{
			{Width: 640, Height: 480},
			{Width: 1280, Height: 720},
		},
		Formats: []string{"MJPG"},
	}
}

// RemoveDevice はテスト用にデバイスを削除する
func (m *MockDiscovery) RemoveDevice(device string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, d := range m.devices {
		if d == device {
			m.devices = append(m.devices[:i], m.devices[i+1:]...)
			break
		}
	}
	delete(m.deviceInfos, device)
	delete(m.denied, device)
}

// DenyAccess はテスト用にデバイスへのアクセスを拒否させる
func (m *MockDiscovery) DenyAccess(device string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[device] = true
}
