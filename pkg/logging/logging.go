// Package logging adapts the structured loggers used by host applications to
// the small types.Logger contract consumed across go-presence.
package logging

import (
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-presence/pkg/types"
	"go.uber.org/zap"
)

type zapLogger struct {
	l *zap.SugaredLogger
}

// NewZap wraps a zap logger. A nil logger yields types.NopLogger.
func NewZap(l *zap.Logger) types.Logger {
	if l == nil {
		return types.NopLogger{}
	}
	return &zapLogger{l: l.Sugar()}
}

func (z *zapLogger) Debug(msg string, fields ...any) {
	z.l.Debugw(msg, fields...)
}

func (z *zapLogger) Info(msg string, fields ...any) {
	z.l.Infow(msg, fields...)
}

func (z *zapLogger) Error(msg string, err error, fields ...any) {
	if err != nil {
		fields = append([]any{"error", err}, fields...)
	}
	z.l.Errorw(msg, fields...)
}

// glogLogger adapts glog.Logger to types.Logger
type glogLogger struct {
	l glog.Logger
}

// NewGlog wraps a go-logger logger. A nil logger yields types.NopLogger.
func NewGlog(l glog.Logger) types.Logger {
	if l == nil {
		return types.NopLogger{}
	}
	return &glogLogger{l: l}
}

func (a *glogLogger) Debug(msg string, args ...any) {
	a.l.Debug(msg, args...)
}

func (a *glogLogger) Info(msg string, args ...any) {
	a.l.Info(msg, args...)
}

func (a *glogLogger) Error(msg string, err error, args ...any) {
	if err != nil {
		args = append([]any{"error", err}, args...)
	}
	a.l.Error(msg, args...)
}
