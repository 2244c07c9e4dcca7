// Package pionmedia pion/mediadevices を使ったmedia.Platformの実装
//
// ドライバはパッケージ読み込み時に登録される
// 映像トラックはmedia.FrameSourceを実装し、プレビュー配信に利用できる
//
// mediadevicesが扱えない条件（FacingMode、エコーキャンセル、ノイズ抑制）は無視する
package pionmedia
