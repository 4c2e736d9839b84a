// Package log はアプリケーション共通の構造化ログを提供する
//
// log/slog をラップし、レベルと出力形式を設定から切り替える。
package log

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	logger *slog.Logger
	mu     sync.RWMutex
)

// Init はグローバルロガーを初期化する
// level: "debug", "info", "warn", "error"
// format: "json" の場合はJSON、それ以外はテキスト
func Init(level, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter は出力先を指定してグローバルロガーを初期化する
func InitWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	logger = slog.New(handler)
	mu.Unlock()

	slog.SetDefault(logger)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// L はグローバルロガーを返す
func L() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		Init("info", "text")
		return L()
	}
	return l
}

// Debug はDEBUGレベルで出力する
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info はINFOレベルで出力する
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn はWARNレベルで出力する
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error はERRORレベルで出力する
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With は属性付きのロガーを返す
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
