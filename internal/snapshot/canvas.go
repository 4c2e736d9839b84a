// Package snapshot はカメラフレームを静止画として描画し、データURIへ変換する
package snapshot

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"golang.org/x/image/draw"
)

const (
	// DefaultQuality はJPEGエンコードの既定品質
	DefaultQuality = 92

	// JPEGDataURIPrefix はJPEGデータURIの接頭辞
	JPEGDataURIPrefix = "data:image/jpeg;base64,"

	// emptyDataURI はサイズ0のキャンバスを変換した結果
	emptyDataURI = "data:,"
)

// Canvas は再利用されるオフスクリーン描画面
//
// Resize で内容は破棄される。
type Canvas struct {
	mu      sync.Mutex
	img     *image.RGBA
	quality int
}

// NewCanvas はサイズ0のキャンバスを作成する
func NewCanvas() *Canvas {
	return NewCanvasWithQuality(DefaultQuality)
}

// NewCanvasWithQuality はJPEG品質を指定してキャンバスを作成する
func NewCanvasWithQuality(quality int) *Canvas {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Canvas{
		img:     image.NewRGBA(image.Rect(0, 0, 0, 0)),
		quality: quality,
	}
}

// Resize はキャンバスを指定サイズにして内容を消去する
func (c *Canvas) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Size は現在のキャンバスサイズを返す
func (c *Canvas) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// DrawImage は画像をキャンバス全体 (0, 0, width, height) に描画する
// サイズが異なる場合は拡大縮小する。
func (c *Canvas) DrawImage(src image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dst := c.img.Bounds()
	if dst.Empty() {
		return
	}

	sb := src.Bounds()
	if sb.Dx() == dst.Dx() && sb.Dy() == dst.Dy() {
		draw.Draw(c.img, dst, src, sb.Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(c.img, dst, src, sb, draw.Src, nil)
}

// Image はキャンバス内容のコピーを返す
func (c *Canvas) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := image.NewRGBA(c.img.Bounds())
	copy(cp.Pix, c.img.Pix)
	return cp
}

// ToDataURL はキャンバス内容をJPEGのbase64データURIに変換する
func (c *Canvas) ToDataURL() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.img.Bounds().Empty() {
		return emptyDataURI, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, c.img, &jpeg.Options{Quality: c.quality}); err != nil {
		return "", fmt.Errorf("JPEGエンコードに失敗: %w", err)
	}

	return JPEGDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURL はJPEGデータURIを画像に戻す
func DecodeDataURL(uri string) (image.Image, error) {
	if len(uri) < len(JPEGDataURIPrefix) || uri[:len(JPEGDataURIPrefix)] != JPEGDataURIPrefix {
		return nil, fmt.Errorf("JPEGデータURIではありません")
	}

	data, err := base64.StdEncoding.DecodeString(uri[len(JPEGDataURIPrefix):])
	if err != nil {
		return nil, fmt.Errorf("base64デコードに失敗: %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("JPEGデコードに失敗: %w", err)
	}
	return img, nil
}
