// Package minilog extends Go's logging functionality to allow for multiple
// loggers, each with their own level, and for messages tagged with the name
// of the component that produced them (e.g. "[model:cpu] quantities invalid: 0").
package minilog

import (
	"errors"
	"fmt"
	golog "log"
	"io"
	"os"
	"sync"
)

// Log levels supported: DEBUG -> INFO -> WARN -> ERROR -> FATAL
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel returns the log level for a string such as "debug" or "warn".
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn":
		return WARN, nil
	case "error":
		return ERROR, nil
	case "fatal":
		return FATAL, nil
	}
	return -1, errors.New("invalid log level")
}

type minilogger struct {
	*golog.Logger
	level Level
}

var (
	loggers = make(map[string]*minilogger)
	logLock sync.RWMutex
)

// AddLogger registers a named logger that writes to w, filtering out
// messages below level.
func AddLogger(name string, w io.Writer, level Level) {
	logLock.Lock()
	defer logLock.Unlock()

	loggers[name] = &minilogger{golog.New(w, "", golog.LstdFlags), level}
}

// DelLogger removes a previously registered logger.
func DelLogger(name string) {
	logLock.Lock()
	defer logLock.Unlock()

	delete(loggers, name)
}

// SetLevel changes the level for a named logger.
func SetLevel(name string, level Level) error {
	logLock.Lock()
	defer logLock.Unlock()

	if loggers[name] == nil {
		return errors.New("logger does not exist")
	}
	loggers[name].level = level
	return nil
}

func dispatch(level Level, format string, arg ...interface{}) {
	logLock.RLock()
	defer logLock.RUnlock()

	if len(loggers) == 0 && level >= WARN {
		// no logger configured yet -- don't lose warnings and errors
		golog.Printf(level.String()+" "+format, arg...)
		return
	}

	for _, l := range loggers {
		if l.level <= level {
			l.Printf(level.String()+" "+format, arg...)
		}
	}
}

func Debug(format string, arg ...interface{}) { dispatch(DEBUG, format, arg...) }
func Info(format string, arg ...interface{})  { dispatch(INFO, format, arg...) }
func Warn(format string, arg ...interface{})  { dispatch(WARN, format, arg...) }
func Error(format string, arg ...interface{}) { dispatch(ERROR, format, arg...) }

func Fatal(format string, arg ...interface{}) {
	dispatch(FATAL, format, arg...)
	os.Exit(1)
}

// Logger is a component-tagged view onto the package-level loggers. Messages
// are prefixed "[name] " the way the spec's error taxonomy tags messages,
// e.g. "[model:cpu] quantities invalid: 0".
type Logger struct {
	name string
}

// Named returns a Logger that tags every message with name.
func Named(name string) Logger {
	return Logger{name: name}
}

func (t Logger) Debug(format string, arg ...interface{}) {
	Debug("[%s] "+format, append([]interface{}{t.name}, arg...)...)
}

func (t Logger) Info(format string, arg ...interface{}) {
	Info("[%s] "+format, append([]interface{}{t.name}, arg...)...)
}

func (t Logger) Warn(format string, arg ...interface{}) {
	Warn("[%s] "+format, append([]interface{}{t.name}, arg...)...)
}

func (t Logger) Error(format string, arg ...interface{}) {
	Error("[%s] "+format, append([]interface{}{t.name}, arg...)...)
}
