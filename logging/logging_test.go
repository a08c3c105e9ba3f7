package logging

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestObservedTestLogger(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Debugw("frame acquired", "stream", "depth")
	logger.Infof("opened %s", "kinect_v2")

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	entries := logs.All()
	test.That(t, entries[0].Message, test.ShouldEqual, "frame acquired")
	test.That(t, entries[0].ContextMap()["stream"], test.ShouldEqual, "depth")
	test.That(t, entries[1].Level, test.ShouldEqual, zapcore.InfoLevel)
}

func TestSubloggerLevels(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("sensor")
	sub.SetLevel(zapcore.WarnLevel)

	sub.Debug("hidden")
	sub.Warn("shown")
	logger.Debug("parent still debug")

	test.That(t, logs.FilterMessage("hidden").Len(), test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("shown").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("shown").All()[0].LoggerName, test.ShouldEqual, "sensor")
	test.That(t, logs.FilterMessage("parent still debug").Len(), test.ShouldEqual, 1)
}

func TestCDebugwPromotesInDebugMode(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.SetLevel(zapcore.InfoLevel)

	logger.CDebugw(context.Background(), "quiet")
	test.That(t, logs.Len(), test.ShouldEqual, 0)

	ctx := WithTrace(context.Background(), "trace1")
	key, ok := Trace(ctx)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, key, test.ShouldEqual, "trace1")

	key, ok = Trace(WithTrace(context.Background(), ""))
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, key, test.ShouldHaveLength, 6)
	logger.CDebugw(ctx, "loud")
	test.That(t, logs.FilterMessage("loud").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("loud").All()[0].ContextMap()["traceKey"], test.ShouldEqual, "trace1")
}
