package json

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// JSONLogger implements LoggerInstance with zap's production JSON encoder.
// It is used when logs are shipped to a collector instead of read on a terminal.
type JSONLogger struct {
	logger *zap.SugaredLogger
}

type JSONLoggerParams struct {
	Debug   bool
	Service string
}

func NewJSONLogger(params JSONLoggerParams) *JSONLogger {
	level := zapcore.InfoLevel
	if params.Debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(level),
	)

	logger := zap.New(core)
	if params.Service != "" {
		logger = logger.With(zap.String("service", params.Service))
	}

	return &JSONLogger{logger: logger.Sugar()}
}

func (j *JSONLogger) Log(message string, keyvals ...any) {
	j.logger.Infow(message, keyvals...)
}

func (j *JSONLogger) Info(message string, keyvals ...any) {
	j.logger.Infow(message, keyvals...)
}

func (j *JSONLogger) Warn(message string, keyvals ...any) {
	j.logger.Warnw(message, keyvals...)
}

func (j *JSONLogger) Error(message string, keyvals ...any) {
	j.logger.Errorw(message, keyvals...)
}

func (j *JSONLogger) Debug(message string, keyvals ...any) {
	j.logger.Debugw(message, keyvals...)
}

func (j *JSONLogger) Fatal(message string, keyvals ...any) {
	j.logger.Fatalw(message, keyvals...)
}

// Sync flushes buffered entries.
func (j *JSONLogger) Sync() error {
	return j.logger.Sync()
}
