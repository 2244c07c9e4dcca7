// Package lifecycle カメラ/マイクを解放するきっかけを管理する
//
// # 解放のきっかけ
//   - プロセス終了（SIGINT/SIGTERM、コンテキストのキャンセル）
//   - キャプチャを必要とする画面からの遷移
//   - 取得を行った画面のアンマウント
//
// どのきっかけも何度発火しても安全で、最終的にForceStopAllTracksを呼び出す
package lifecycle
