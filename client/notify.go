package client

import (
	"context"
	"io"
	"log/slog"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notifier shows short user-visible messages (toasts, status lines).
type Notifier interface {
	Notify(level Level, message string)
}

type NotifierFunc func(level Level, message string)

func (f NotifierFunc) Notify(level Level, message string) { f(level, message) }

// SlogNotifier writes notifications to a structured logger.
type SlogNotifier struct {
	Logger *slog.Logger
}

func (n SlogNotifier) Notify(level Level, message string) {
	logLevel := slog.LevelInfo
	switch level {
	case LevelWarning:
		logLevel = slog.LevelWarn
	case LevelError:
		logLevel = slog.LevelError
	}
	n.Logger.Log(context.Background(), logLevel, message, slog.String("kind", level.String()))
}

// Navigator moves the user to another view.
type Navigator interface {
	ToLogin()
}

type NavigatorFunc func()

func (f NavigatorFunc) ToLogin() { f() }

type noopNotifier struct{}

func (noopNotifier) Notify(Level, string) {}

type noopNavigator struct{}

func (noopNavigator) ToLogin() {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
