// Package conversation 音声AIサービスとのWebSocketイベントチャネル
//
// サーバーから届くJSONイベント（call-start、call-end、speech-start、speech-end、
// message、error）をイベント種別ごとに登録されたハンドラへ配信する。
// ハンドラは受信ゴルーチン上で順番に呼び出される
package conversation
