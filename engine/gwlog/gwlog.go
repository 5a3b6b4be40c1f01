// Package gwlog is worldlink's structured logging façade: package-level
// Debugf/Infof/Warnf/Errorf/Panicf/Fatalf funcs backed by a
// go.uber.org/zap SugaredLogger, adapted from goworld's engine/gwlog.
//
// Unlike the teacher, SetLevel and SetOutput are wired to something real
// (goworld ships them as commented-out no-ops that its own test still
// calls) so a host can actually raise the level or redirect output at
// runtime instead of silently doing nothing.
package gwlog

import (
	"encoding/json"
	"io"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	outputWriter io.Writer = os.Stderr

	// DebugLevel level
	DebugLevel Level = Level(zap.DebugLevel)
	// InfoLevel level
	InfoLevel Level = Level(zap.InfoLevel)
	// WarnLevel level
	WarnLevel Level = Level(zap.WarnLevel)
	// ErrorLevel level
	ErrorLevel Level = Level(zap.ErrorLevel)
	// PanicLevel level
	PanicLevel Level = Level(zap.PanicLevel)
	// FatalLevel level
	FatalLevel Level = Level(zap.FatalLevel)

	// Debugf logs formatted debug message
	Debugf logFormatFunc
	// Infof logs formatted info message
	Infof logFormatFunc
	// Warnf logs formatted warn message
	Warnf logFormatFunc
	// Errorf logs formatted error message
	Errorf logFormatFunc
	Panicf logFormatFunc
	Fatalf logFormatFunc
	Fatal  func(args ...interface{})
	Panic  func(args ...interface{})
)

type logFormatFunc func(format string, args ...interface{})

// Level is type of log levels
type Level zapcore.Level

var (
	cfg    zap.Config
	logger *zap.Logger
	sugar  *zap.SugaredLogger
)

func init() {
	var err error
	cfgJson := []byte(`{
		"level": "debug",
		"outputPaths": ["stderr"],
		"errorOutputPaths": ["stderr"],
		"encoding": "console",
		"encoderConfig": {
			"messageKey": "message",
			"levelKey": "level",
			"levelEncoder": "lowercase"
		}
	}`)

	if err = json.Unmarshal(cfgJson, &cfg); err != nil {
		panic(err)
	}

	logger, err = cfg.Build()
	if err != nil {
		panic(err)
	}
	setSugar(logger.Sugar())
}

// SetSource sets the component name (transport/event/cache) of gwlog module
func SetSource(comp string) {
	logger = logger.With(zap.String("source", comp))
	setSugar(logger.Sugar())
}

func setSugar(sugar_ *zap.SugaredLogger) {
	sugar = sugar_
	Debugf = sugar.Debugf
	Infof = sugar.Infof
	Warnf = sugar.Warnf
	Errorf = sugar.Errorf
	Panicf = sugar.Panicf
	Panic = sugar.Panic
	Fatalf = sugar.Fatalf
	Fatal = sugar.Fatal
}

// SetLevel changes the minimum level zap emits at. cfg.Level is a
// zap.AtomicLevel, so this takes effect immediately without rebuilding the
// logger.
func SetLevel(lv Level) {
	cfg.Level.SetLevel(zapcore.Level(lv))
}

// TraceError writes a stack dump to the current output writer, then logs
// the formatted message at Error level. Used at the two panic-containment
// boundaries (engine/gwutils.RunPanicless callers) to record why a
// listener or callback was treated as Internal (spec.md 7).
func TraceError(format string, args ...interface{}) {
	outputWriter.Write(debug.Stack())
	Errorf(format, args...)
}

// SetOutput points both the structured logger and TraceError's raw stack
// dumps at paths, using zap's own output-path convention ("stderr",
// "stdout", or a filesystem path). Any non-stdio path is also opened
// (append, create if missing) and used as TraceError's writer, so a stack
// dump lands next to the structured log lines describing the same panic.
func SetOutput(paths []string) error {
	cfg.OutputPaths = paths
	cfg.ErrorOutputPaths = paths

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	logger = built
	setSugar(logger.Sugar())

	var writers []io.Writer
	for _, p := range paths {
		switch p {
		case "stderr":
			writers = append(writers, os.Stderr)
		case "stdout":
			writers = append(writers, os.Stdout)
		default:
			f, ferr := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if ferr != nil {
				return ferr
			}
			writers = append(writers, f)
		}
	}
	if len(writers) == 1 {
		outputWriter = writers[0]
	} else if len(writers) > 1 {
		outputWriter = io.MultiWriter(writers...)
	}
	return nil
}

// GetOutput returns the writer TraceError currently dumps stacks to.
func GetOutput() io.Writer {
	return outputWriter
}

// ParseLevel converts a level name to a Level, defaulting to DebugLevel
// (with a logged error) for anything it does not recognize.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "panic":
		return PanicLevel
	case "fatal":
		return FatalLevel
	default:
		Errorf("ParseLevel: unknown level: %s", s)
		return DebugLevel
	}
}
