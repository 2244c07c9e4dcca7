// Package media カメラ・マイクのキャプチャリソースをプロセス全体で一元管理する
//
// # 責務
// - カメラ/マイクのキャプチャハンドルを唯一の所有者として保持する
// - 取得・トグル・切り替え・強制解放の各操作を提供する
// - ハンドル差し替え・有効状態の変化・エラーを購読者へ通知する
// - 所有していた画面が消えた後にデバイスを開いたままにしない
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 複数の画面（プレビュー、デバイス設定、面接画面）から同じカメラを参照したい
// - ナビゲーションや終了時に確実にカメラを停止したい
//
// # 仕様
//   - Manager: キャプチャハンドルの単一所有者。状態はManager自身の操作でのみ変化する
//   - Handle: 不変値。変更のたびに新しいHandleへ差し替わるため、ポインタ比較で変化を検出できる
//   - トラックが0本のHandleは作られない（nilと同一視する）
//   - Platform: 実際のデバイスアクセスを抽象化する（pionmedia / MockPlatform）
//   - 重なった非同期操作は世代カウンタで判定し、古い結果は破棄して即座に停止する
//   - ForceStopAllTracks は冪等で、決してエラーやpanicを呼び出し元へ返さない
package media
