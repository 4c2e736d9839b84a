// Package server は、顔登録キオスクのHTTPサーバーを提供します。
//
// 責務:
//   - キオスク画面（HTML/JS）の配信
//   - カメラの開始・停止とMJPEGプレビューの配信
//   - 撮影リクエストの受付と登録サーバーへの転送
//   - ステータス表示の変化をWebSocketで通知
//
// 仕様:
//   - ルーティングはginを使用
//   - WebSocketはgorilla/websocketを使用
//   - 撮影APIはクライアントIP毎にレート制限
//   - グレースフルシャットダウンに対応
package server
