// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the demo logger: JSON lines into a rotated file,
// teed with a console core, exposed to the bridge as a *slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	File       string    // Log file, rotated by size; empty disables the file core
	Production bool      // JSON on the console instead of the development format
	Verbose    bool      // Debug level on the console
	Console    io.Writer // Defaults to os.Stdout
}

// Logger owns the zap logger and the file rotator behind it.
type Logger struct {
	*zap.Logger
	rotator *lumberjack.Logger
}

// New creates the logger described by opts.
func New(opts Options) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	jsonEncoder := zapcore.NewJSONEncoder(encoderConfig)

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	var consoleEncoder zapcore.Encoder
	if opts.Production {
		consoleEncoder = jsonEncoder
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	consoleLevel := zap.InfoLevel
	if opts.Verbose {
		consoleLevel = zap.DebugLevel
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(zapcore.AddSync(console)), consoleLevel),
	}

	l := &Logger{}
	if opts.File != "" {
		l.rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // Megabytes
			MaxBackups: 5,
			MaxAge:     30, // Days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(l.rotator), zap.DebugLevel))
	}

	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return l
}

// Slog returns a *slog.Logger writing through the same cores.
func (l *Logger) Slog() *slog.Logger {
	return slog.New(zapslog.NewHandler(l.Core()))
}

// Close flushes buffered entries and closes the log file.
func (l *Logger) Close() error {
	// Sync on a terminal console fails with EINVAL on some systems
	_ = l.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}
