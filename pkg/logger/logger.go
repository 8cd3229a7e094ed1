package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds the process-wide logger for marketd. A "dev" environment gets
// the colored console encoder; "uat" and "prod" log production JSON. level
// overrides the encoder default when it parses ("debug", "info", "warn").
func Init(service, env, level string) {
	cfg := zap.NewProductionConfig()
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	built, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		panic("logger init failed: " + err.Error())
	}

	log = built
	sugar = built.Sugar()
	sugar.Infow("logger ready", "service", service, "env", env, "level", level)
}

// L returns the structured logger for hot paths. Callers that run before
// main finishes wiring (or in tests) get a dev logger instead of nil.
func L() *zap.Logger {
	if log == nil {
		Init("marketd", "dev", "info")
	}
	return log
}

// S returns the sugared logger.
func S() *zap.SugaredLogger {
	if sugar == nil {
		Init("marketd", "dev", "info")
	}
	return sugar
}

// Sync flushes buffered entries; defer from main.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
