package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"facecapture/internal/log"
)

// Preview はカメラストリームの再生面
//
// 取り付けられたストリームのフレームを視聴者(MJPEG配信など)へ配り、
// 現在フレームとそのネイティブ解像度を提供する。
type Preview struct {
	swapMu  sync.Mutex // Attach/Detach を直列化する
	mu      sync.RWMutex
	source  VideoSource
	stopCh  chan struct{}
	pumpWG  sync.WaitGroup
	viewers map[int]chan []byte
	nextID  int
}

// NewPreview は空のPreviewを作成する
func NewPreview() *Preview {
	return &Preview{
		viewers: make(map[int]chan []byte),
	}
}

// Attach はストリームを再生元として取り付ける
// 既に別のストリームがある場合はそれを停止して置き換える。
func (p *Preview) Attach(source VideoSource) {
	previous := p.swap(source)
	if previous != nil && previous != source {
		if err := previous.Stop(context.Background()); err != nil {
			log.Warn("以前のストリームの停止に失敗", "source", previous.GetInfo().ID, "error", err)
		}
	}
}

// Detach はストリームを取り外して返す。停止は呼び出し側で行う
func (p *Preview) Detach() VideoSource {
	return p.swap(nil)
}

// DetachIf は source が取り付けられている場合だけ取り外す
func (p *Preview) DetachIf(source VideoSource) bool {
	p.swapMu.Lock()
	defer p.swapMu.Unlock()

	p.mu.Lock()
	if source == nil || p.source != source {
		p.mu.Unlock()
		return false
	}
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	p.source = nil
	p.mu.Unlock()

	p.pumpWG.Wait()
	return true
}

// swap はフレーム配信を止めてストリームを入れ替える
func (p *Preview) swap(source VideoSource) VideoSource {
	p.swapMu.Lock()
	defer p.swapMu.Unlock()

	p.mu.Lock()
	previous := p.source
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
	p.mu.Unlock()

	p.pumpWG.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.source = source
	if source != nil {
		p.stopCh = make(chan struct{})
		p.pumpWG.Add(1)
		go p.pump(source, p.stopCh)
	}

	return previous
}

// Source は現在のストリームを返す
func (p *Preview) Source() VideoSource {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.source
}

// Attached はストリームが取り付けられているか返す
func (p *Preview) Attached() bool {
	return p.Source() != nil
}

// VideoSize は現在フレームのネイティブ解像度を返す
// ストリームが無い、またはまだフレームが無い場合は 0, 0。
func (p *Preview) VideoSize() (width, height int) {
	frame, err := p.currentJPEG()
	if err != nil {
		return 0, 0
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// CurrentFrame は現在フレームをデコードして返す
func (p *Preview) CurrentFrame() (image.Image, error) {
	frame, err := p.currentJPEG()
	if err != nil {
		return nil, err
	}

	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
	}
	return img, nil
}

func (p *Preview) currentJPEG() ([]byte, error) {
	source := p.Source()
	if source == nil {
		return nil, ErrSourceInactive
	}
	return source.LatestFrame(context.Background())
}

// Subscribe はJPEGフレームを受け取るチャンネルと解除関数を返す
func (p *Preview) Subscribe() (<-chan []byte, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan []byte, 2)
	p.viewers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.viewers, id)
			close(ch)
		})
	}
}

// pump はストリームのフレームとエラーを視聴者へ配る
func (p *Preview) pump(source VideoSource, stopCh <-chan struct{}) {
	defer p.pumpWG.Done()

	frames := source.GetFrameChannel()
	errs := source.GetErrorChannel()

	for {
		select {
		case <-stopCh:
			return

		case frame, ok := <-frames:
			if !ok {
				return
			}
			p.broadcast(frame)

		case err, ok := <-errs:
			if !ok {
				return
			}
			log.Warn("カメラストリームでエラーが発生", "source", source.GetInfo().ID, "error", err)
		}
	}
}

func (p *Preview) broadcast(frame []byte) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ch := range p.viewers {
		// 遅い視聴者にはフレームを落とす
		select {
		case ch <- frame:
		default:
		}
	}
}
