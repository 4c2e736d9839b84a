// Package camera カメラストリームの取得とプレビューを担う
//
// # 責務
// - カメラデバイスの検出 (V4L2)
// - 映像のみのストリーム要求と開始 (MediaDevices)
// - ストリームのプレビュー面への取り付けと視聴者への配信 (Preview)
// - カメラ起動結果のステータス表示への書き込み (Activator)
// - デバイス消失やストリーム停止の検知 (Monitor)
//
// # 仕様
// - フレームはJPEGバイト列として流れる
// - Preview は最新フレームのネイティブ解像度を返す。フレームが無ければ 0x0
// - 取得失敗は MediaError (NotAllowedError, NotFoundError など) で返す
// - USB Camera Source: ffmpeg経由での画像キャプチャ
// - GoCV Source: -tags gocv でビルドした場合のみ有効
// - Thread-safe な操作をサポート
//
// # 前提要件
//   - v4l-utils: カメラ名の取得とデバイス制御に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: 画像キャプチャとストリーミングに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
