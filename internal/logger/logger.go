package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Log global logger
	Log *zap.Logger
	// Sugar sugared global logger
	Sugar *zap.SugaredLogger

	mu sync.Mutex
)

// Init builds the console logger at the given level (debug, info, warn, error)
func Init(level string) error {
	mu.Lock()
	defer mu.Unlock()

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		parseLevel(level),
	)

	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	Sugar = Log.Sugar()

	return nil
}

// GetLogger named logger; initializes with info level if Init was never called
func GetLogger(name string) *zap.SugaredLogger {
	mu.Lock()
	l := Log
	mu.Unlock()
	if l == nil {
		_ = Init("info")
		mu.Lock()
		l = Log
		mu.Unlock()
	}
	return l.Named(name).Sugar()
}

// Sync flushes buffered entries
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if Log != nil {
		_ = Log.Sync()
	}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
