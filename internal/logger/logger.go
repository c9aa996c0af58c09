// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package logger provides the structured, leveled logging used throughout
// the filesystem core. It mirrors the severity vocabulary and slog-based
// implementation of the teacher repo's own internal/logger package.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Severity is the filesystem's own leveled-logging vocabulary, mapped onto
// slog.Level so the same Logger can emit either text or JSON records.
type Severity int

const (
	TRACE Severity = iota
	DEBUG
	INFO
	WARNING
	ERROR
)

func (s Severity) slogLevel() slog.Level {
	switch s {
	case TRACE:
		return slog.Level(-8)
	case DEBUG:
		return slog.LevelDebug
	case WARNING:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s Severity) String() string {
	switch s {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger wraps an slog.Logger with the filesystem's severity names and a
// component tag (e.g. "lease", "osio", "dispatch") attached to every record.
type Logger struct {
	base      *slog.Logger
	component string
}

// Format selects the on-wire record shape.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// New builds a Logger writing to w at minLevel in the given format, tagged
// with component. Matches the teacher's practice of one named logger per
// subsystem rather than a single global logger.
func New(w io.Writer, component string, minLevel Severity, format Format) *Logger {
	opts := &slog.HandlerOptions{Level: minLevel.slogLevel()}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{base: slog.New(h), component: component}
}

// Default returns a text logger writing to stderr at INFO level, used
// anywhere a caller has not wired a specific logger through.
func Default(component string) *Logger {
	return New(os.Stderr, component, INFO, FormatText)
}

func (l *Logger) log(sev Severity, msg string, args ...any) {
	args = append([]any{"severity", sev.String(), "component", l.component}, args...)
	l.base.Log(nil, sev.slogLevel(), msg, args...)
}

func (l *Logger) Trace(msg string, args ...any)   { l.log(TRACE, msg, args...) }
func (l *Logger) Debug(msg string, args ...any)   { l.log(DEBUG, msg, args...) }
func (l *Logger) Info(msg string, args ...any)    { l.log(INFO, msg, args...) }
func (l *Logger) Warning(msg string, args ...any) { l.log(WARNING, msg, args...) }
func (l *Logger) Error(msg string, args ...any)   { l.log(ERROR, msg, args...) }
