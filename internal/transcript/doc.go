// Package transcript 音声認識の断片を発話単位のメッセージにまとめる
//
// 同じ話者の部分結果は1つの未確定発話に集約され、最後の更新から一定時間
// （既定3秒）更新がないか、確定イベントを受け取った時点で確定メッセージになる。
// 確定メッセージは新しい順に保持する
package transcript
