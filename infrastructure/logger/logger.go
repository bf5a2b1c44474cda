// Package logger wraps zap with config-driven construction.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls log level and output shape.
type Config struct {
	Level      string   `yaml:"level"`       // debug, info, warn, error
	Format     string   `yaml:"format"`      // json or console
	Outputs    []string `yaml:"outputs"`     // stdout, file
	OutputFile string   `yaml:"output_file"` // path when outputs includes file
}

// DefaultConfig returns sane production defaults.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "json",
		Outputs: []string{"stdout"},
	}
}

// New builds a zap logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if contains(cfg.Outputs, "stdout") {
		var encoder zapcore.Encoder
		if cfg.Format == "console" {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}
	if contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		fileWriter, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(fileWriter), level))
	}
	if len(cores) == 0 {
		return nil, fmt.Errorf("no log outputs configured")
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
