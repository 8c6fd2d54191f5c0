// Package log builds zap loggers out of pluggable cores.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Plugin 日志输出插件，可以同时挂载多个
type Plugin = zapcore.Core

var DefaultOptions = []zap.Option{zap.AddCaller()}

// NewLogger tees every plugin into one logger.
func NewLogger(plugins ...Plugin) *zap.Logger {
	if len(plugins) == 0 {
		return zap.NewNop()
	}
	return zap.New(zapcore.NewTee(plugins...), DefaultOptions...)
}

// ParseLevel accepts debug, info, warn, error, dpanic, panic and fatal.
func ParseLevel(text string) (zapcore.Level, error) {
	if text == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(text)
}
