// Package backend 面接バックエンドのREST APIクライアント
//
// 認証、面接スケジュール、履歴書解析、質問生成、チャットボットの各APIを扱う。
// 2xx以外の応答は*APIErrorとして返す
package backend
