// Package logger 提供统一的结构化日志支持
// 基于 Go 1.21+ 标准库 log/slog，不引入额外依赖
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	defaultLogger *slog.Logger
	initOnce      sync.Once
)

// 初始化默认 logger
func init() {
	initOnce.Do(func() {
		defaultLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})).With("app", "uptime-pulse")
	})
}

// Default 返回默认 logger
func Default() *slog.Logger {
	return defaultLogger
}

// WithComponent 创建带有组件标识的 logger
func WithComponent(component string) *slog.Logger {
	return defaultLogger.With("component", component)
}

// 便捷方法：直接记录日志

// Info 记录 INFO 级别日志
func Info(component, msg string, args ...any) {
	WithComponent(component).Info(msg, args...)
}

// Warn 记录 WARN 级别日志
func Warn(component, msg string, args ...any) {
	WithComponent(component).Warn(msg, args...)
}

// Error 记录 ERROR 级别日志
func Error(component, msg string, args ...any) {
	WithComponent(component).Error(msg, args...)
}

// Debug 记录 DEBUG 级别日志
func Debug(component, msg string, args ...any) {
	WithComponent(component).Debug(msg, args...)
}
