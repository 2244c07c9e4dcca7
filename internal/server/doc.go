// Package server は、カメラ/マイクの状態と操作をHTTPで公開します。
//
// 責務:
//   - HTTPサーバーの起動とグレースフルシャットダウン
//   - カメラ/マイクの取得・切り替え・解放のエンドポイント
//   - 画面ごとのイベント配信（SSE）
//   - カメラのプレビュー配信（MJPEG）
//   - 文字起こしと面接通話の状態の公開
//
// 仕様:
//   - ルーティングはgin
//   - /api/media/events は接続1本を画面1つとして扱い、切断時にアンマウントする
//   - シャットダウン時は必ずデバイスを解放する
package server
