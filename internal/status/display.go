// Package status はキオスク画面に表示する単一のステータス文字列を保持する
//
// カメラ起動とキャプチャ送信の両方が書き込む共有リソースで、
// 最後に書き込んだ値が勝つ。履歴やキューは持たない。
package status

import (
	"sync"
	"time"
)

// Update はステータス更新の通知内容
type Update struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Display はスレッドセーフなステータス表示領域
type Display struct {
	mu          sync.RWMutex
	text        string
	updatedAt   time.Time
	subscribers map[int]chan Update
	nextID      int
}

// NewDisplay は空のDisplayを作成する
func NewDisplay() *Display {
	return &Display{
		subscribers: make(map[int]chan Update),
	}
}

// Set はステータス文字列を上書きし、購読者へ通知する
func (d *Display) Set(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.text = text
	d.updatedAt = time.Now()
	u := Update{Text: text, At: d.updatedAt}

	for _, ch := range d.subscribers {
		// 遅い購読者は古い通知を捨てて最新だけ受け取る
		select {
		case ch <- u:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- u:
			default:
			}
		}
	}
}

// Text は現在のステータス文字列を返す
func (d *Display) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Snapshot は現在の値を更新時刻付きで返す
func (d *Display) Snapshot() Update {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Update{Text: d.text, At: d.updatedAt}
}

// Subscribe は更新通知チャンネルと解除関数を返す
func (d *Display) Subscribe() (<-chan Update, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	ch := make(chan Update, 1)
	d.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.subscribers, id)
			close(ch)
		})
	}

	return ch, cancel
}
