// Package log is Stasis's leveled logger. It deliberately stays on the
// standard library's log.Logger, the way fancylock's logger.go does.
package log

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

var (
	currentLevel Level = LevelInfo
	logger             = log.New(os.Stderr, "", log.LstdFlags)
	debugMode    bool
)

// Init configures the package-level logger. Call once at startup.
func Init(level Level, debug bool) {
	currentLevel = level
	debugMode = debug

	if debug {
		logger.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		logger.SetFlags(log.LstdFlags)
	}
}

// SetLevel changes the current logging threshold.
func SetLevel(level Level) {
	currentLevel = level
}

func callerInfo() string {
	if !debugMode {
		return ""
	}
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return ""
	}
	parts := strings.Split(file, "/")
	return fmt.Sprintf("[%s:%d] ", parts[len(parts)-1], line)
}

func format(level, format string, args ...interface{}) string {
	ts := time.Now().Format("2006/01/02 15:04:05")
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return fmt.Sprintf("%s %s%s: %s", ts, callerInfo(), level, msg)
}

// Fields renders a key=value suffix for structured context without
// pulling in a structured-logging library.
func Fields(kv map[string]any) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for k, v := range kv {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	return b.String()
}

func Debug(f string, args ...interface{}) {
	if !debugMode || currentLevel > LevelDebug {
		return
	}
	logger.Output(2, format("DEBUG", f, args...))
}

func Info(f string, args ...interface{}) {
	if currentLevel > LevelInfo {
		return
	}
	logger.Output(2, format("INFO", f, args...))
}

func Warn(f string, args ...interface{}) {
	if currentLevel > LevelWarn {
		return
	}
	logger.Output(2, format("WARN", f, args...))
}

func Error(f string, args ...interface{}) {
	if currentLevel > LevelError {
		return
	}
	logger.Output(2, format("ERROR", f, args...))
}

func Fatal(f string, args ...interface{}) {
	logger.Output(2, format("FATAL", f, args...))
	os.Exit(1)
}
