package common

import (
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Column Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// columnLogger writes one line per message: "<LEVEL> | <logger> | <message>".
// The level is atomic because the statistics goroutines of columns log concurrently
// with InitLoggers.
type columnLogger struct {
	name   string
	level  atomic.Int32
	logger *log.Logger
}

func (l *columnLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *columnLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *columnLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.log("DEBUG", format, args...)
	}
}

func (l *columnLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.log("INFO", format, args...)
	}
}

func (l *columnLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.log("WARN", format, args...)
	}
}

func (l *columnLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.log("ERROR", format, args...)
	}
}

func (l *columnLogger) Panicf(format string, args ...interface{}) {
	if l.enabled(logger.CRITICAL) {
		panic(fmt.Sprintf(format, args...))
	}
}

func (l *columnLogger) log(levelStr string, format string, args ...interface{}) {
	l.logger.Printf("%-5s | %-9s | %s", levelStr, l.name, fmt.Sprintf(format, args...))
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// logOutput is where loggers created by CreateLogger write to.
var logOutput atomic.Pointer[io.Writer]

// SetLogOutput redirects loggers created afterwards, nil restores the default. Command
// output goes to stdout, so the default is stderr.
func SetLogOutput(w io.Writer) {
	if w == nil {
		logOutput.Store(nil)
		return
	}
	logOutput.Store(&w)
}

func currentLogOutput() io.Writer {
	if w := logOutput.Load(); w != nil {
		return *w
	}
	return os.Stderr
}

// CreateLogger implements dragonboats logger.Factory.
func CreateLogger(pkgName string) logger.ILogger {
	l := &columnLogger{
		name:   pkgName,
		logger: log.New(currentLogOutput(), "", log.Ldate|log.Ltime),
	}
	l.level.Store(int32(logger.INFO))
	return l
}

// --------------------------------------------------------------------------
// Levels
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel. The empty string means info.
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logger.DEBUG, nil
	case "", "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// LoggerNames lists the loggers of this module: the attribute packages (generation, mapping
// and column), the persistence codec, the column store, the support data structures and the CLI.
var LoggerNames = []string{"attribute", "codec", "store", "util", "cli"}

// ParseLogLevels parses a level spec of the form "<default>[,<logger>=<level>...]",
// e.g. "warn,codec=debug". The result holds a level for every name in LoggerNames.
func ParseLogLevels(spec string) (map[string]logger.LogLevel, error) {
	parts := strings.Split(spec, ",")

	def, err := ParseLogLevel(parts[0])
	if err != nil {
		return nil, err
	}
	levels := make(map[string]logger.LogLevel, len(LoggerNames))
	for _, name := range LoggerNames {
		levels[name] = def
	}

	for _, part := range parts[1:] {
		name, level, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("invalid logger level %q: expected <logger>=<level>", part)
		}
		if !slices.Contains(LoggerNames, name) {
			return nil, fmt.Errorf("unknown logger %q: must be one of %s", name, strings.Join(LoggerNames, ", "))
		}
		lvl, err := ParseLogLevel(level)
		if err != nil {
			return nil, err
		}
		levels[name] = lvl
	}
	return levels, nil
}

// InitLoggers installs the column logger factory and applies the level spec
// (see ParseLogLevels) to all loggers of this module.
func InitLoggers(spec string) error {
	levels, err := ParseLogLevels(spec)
	if err != nil {
		return err
	}

	logger.SetLoggerFactory(CreateLogger)

	for name, lvl := range levels {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
