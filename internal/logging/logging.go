// Package logging builds the workbench's zap loggers.
package logging

import (
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Formats accepted by Config.Format.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config configures a logger.
type Config struct {
	// Level is one of debug, info, warn or error. Unknown values mean info.
	Level string `json:"level" yaml:"level" toml:"level"`
	// Format is console or json.
	Format string `json:"format" yaml:"format" toml:"format"`
	// OutputPaths are zap sink URLs; stderr when empty.
	OutputPaths []string `json:"outputPaths,omitempty" yaml:"outputPaths,omitempty" toml:"outputPaths,omitempty"`
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
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

func encoderConfig(format string) zapcore.EncoderConfig {
	if format == FormatConsole {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return ec
	}
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}

func encoding(format string) string {
	if format == FormatConsole {
		return FormatConsole
	}
	return FormatJSON
}

// New builds a logger writing to cfg.OutputPaths.
func New(cfg Config) (*zap.Logger, error) {
	paths := cfg.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stderr"}
	}
	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(cfg.Level)),
		Development:      cfg.Format == FormatConsole,
		Encoding:         encoding(cfg.Format),
		EncoderConfig:    encoderConfig(cfg.Format),
		OutputPaths:      paths,
		ErrorOutputPaths: []string{"stderr"},
	}
	return zcfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

// NewWriter builds a logger writing to w. The console format is written
// without color.
func NewWriter(cfg Config, w io.Writer) *zap.Logger {
	ec := encoderConfig(cfg.Format)
	var enc zapcore.Encoder
	if cfg.Format == FormatConsole {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	} else {
		enc = zapcore.NewJSONEncoder(ec)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(w), ParseLevel(cfg.Level))
	return zap.New(core)
}
