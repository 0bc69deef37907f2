package logger

import (
	"log"
	"os"
)

// Logger is a thin leveled wrapper over the standard log package.
type Logger struct {
	info  *log.Logger
	err   *log.Logger
	debug *log.Logger
	quiet bool
}

func New() *Logger {
	return &Logger{
		info:  log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime),
		err:   log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime),
		debug: log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime),
		quiet: os.Getenv("ROOMCAST_DEBUG") == "",
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.info.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.err.Printf(format, v...)
}

// Debug logs only when ROOMCAST_DEBUG is set.
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.quiet {
		return
	}
	l.debug.Printf(format, v...)
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.err.Printf(format, v...)
	os.Exit(1)
}

var Default = New()

func Info(format string, v ...interface{})  { Default.Info(format, v...) }
func Error(format string, v ...interface{}) { Default.Error(format, v...) }
func Debug(format string, v ...interface{}) { Default.Debug(format, v...) }
func Fatal(format string, v ...interface{}) { Default.Fatal(format, v...) }
