package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface every component accepts.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// CDebugw logs at debug level, or at info level when the context carries a debug directive
	// from WithTrace.
	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})
	CDebugf(ctx context.Context, template string, args ...interface{})

	Sublogger(subname string) Logger
	SetLevel(level zapcore.Level)
	AsZap() *zap.SugaredLogger
	Sync() error
}

type impl struct {
	name  string
	level zap.AtomicLevel
	core  zapcore.Core
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	core := &levelCore{Core: imp.core, level: imp.level}
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar().Named(imp.name)
}

func (imp *impl) SetLevel(level zapcore.Level) {
	imp.level.SetLevel(level)
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}
	return &impl{
		name:  newName,
		level: zap.NewAtomicLevelAt(imp.level.Level()),
		core:  imp.core,
	}
}

func (imp *impl) Sync() error {
	return imp.core.Sync()
}

func (imp *impl) Debug(args ...interface{}) { imp.AsZap().Debug(args...) }

func (imp *impl) Debugf(template string, args ...interface{}) { imp.AsZap().Debugf(template, args...) }

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.AsZap().Debugw(msg, keysAndValues...)
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	if key, ok := Trace(ctx); ok {
		imp.AsZap().Infow(msg, append(keysAndValues, "traceKey", key)...)
		return
	}
	imp.AsZap().Debugw(msg, keysAndValues...)
}

func (imp *impl) CDebugf(ctx context.Context, template string, args ...interface{}) {
	if _, ok := Trace(ctx); ok {
		imp.AsZap().Infof(template, args...)
		return
	}
	imp.AsZap().Debugf(template, args...)
}

func (imp *impl) Info(args ...interface{}) { imp.AsZap().Info(args...) }

func (imp *impl) Infof(template string, args ...interface{}) { imp.AsZap().Infof(template, args...) }

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.AsZap().Infow(msg, keysAndValues...)
}

func (imp *impl) Warn(args ...interface{}) { imp.AsZap().Warn(args...) }

func (imp *impl) Warnf(template string, args ...interface{}) { imp.AsZap().Warnf(template, args...) }

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.AsZap().Warnw(msg, keysAndValues...)
}

func (imp *impl) Error(args ...interface{}) { imp.AsZap().Error(args...) }

func (imp *impl) Errorf(template string, args ...interface{}) { imp.AsZap().Errorf(template, args...) }

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.AsZap().Errorw(msg, keysAndValues...)
}

// levelCore gates a shared core with the per-logger level so subloggers can be tuned
// independently of their parent.
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (lc *levelCore) Enabled(lvl zapcore.Level) bool {
	return lc.level.Enabled(lvl) && lc.Core.Enabled(lvl)
}

func (lc *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: lc.Core.With(fields), level: lc.level}
}

func (lc *levelCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if lc.Enabled(entry.Level) {
		return checked.AddCore(entry, lc)
	}
	return checked
}
