package camera

import (
	"context"
	"time"

	"facecapture/internal/log"
)

// DefaultMonitorInterval はストリーム監視の既定間隔
const DefaultMonitorInterval = 5 * time.Second

// Monitor はプレビュー中のストリームを監視する
//
// デバイスが消えた、またはソースがエラー状態になった場合は
// ストリームを取り外して停止し、理由をステータス表示に出す。
type Monitor struct {
	preview   *Preview
	discovery Discovery
	status    StatusWriter
	interval  time.Duration
}

// NewMonitor は新しいMonitorを作成する
func NewMonitor(preview *Preview, discovery Discovery, status StatusWriter, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &Monitor{
		preview:   preview,
		discovery: discovery,
		status:    status,
		interval:  interval,
	}
}

// Run はコンテキストがキャンセルされるまで定期的に Check を行う
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check はストリームの健全性を1回確認する。ストリームを外した場合は true
func (m *Monitor) Check(ctx context.Context) bool {
	source := m.preview.Source()
	if source == nil {
		return false
	}

	info := source.GetInfo()
	lost := source.GetStatus() == StatusError
	if !lost && info.Device != "" && !m.discovery.IsDeviceAvailable(ctx, info.Device) {
		lost = true
	}
	if !lost {
		return false
	}

	// 監視中に差し替えられていれば何もしない
	if !m.preview.DetachIf(source) {
		return false
	}

	if err := source.Stop(ctx); err != nil {
		log.Warn("失われたストリームの停止に失敗", "source", info.ID, "error", err)
	}

	lostErr := &MediaError{Name: NotReadableError, Message: "Video source lost"}
	log.Warn("カメラストリームが失われました", "source", info.ID, "device", info.Device)
	m.status.Set(lostErr.Error())
	return true
}
