package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/adrian-griffin/rsbackup/job"
	"github.com/sirupsen/logrus"
)

// global logging, usable before InitLogging runs
var Logx = newDefaultLogger()

func newDefaultLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// typecasts logrus levels based on basic string ID
func logLevelStringSwitch(logLevelString string) logrus.Level {
	switch logLevelString {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// merges package presets + additional fields for logging
func MergeFields(presetFields map[string]interface{}, addOnFields map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(presetFields)+len(addOnFields))
	for key, value := range presetFields {
		merged[key] = value
	}
	for key, value := range addOnFields {
		merged[key] = value
	}
	return merged
}

// core, minimum log fields for all structured logging
func CoreLogFields(context *job.JobContext, pkg string) map[string]interface{} {
	return map[string]interface{}{
		"directory": context.Directory,
		"job_id":    context.JobID,
		"package":   pkg,
	}
}

// log with dynamic map for fields
func LogxWithFields(levelString string, msg string, fields map[string]interface{}) {
	entry := Logx.WithFields(fields)

	level := logLevelStringSwitch(levelString)

	switch level {
	case logrus.DebugLevel:
		entry.Debug(msg)
	case logrus.InfoLevel:
		entry.Info(msg)
	case logrus.WarnLevel:
		entry.Warn(msg)
	case logrus.ErrorLevel:
		entry.Error(msg)
	case logrus.FatalLevel:
		entry.Fatal(msg)
	default:
		entry.Info(msg)
	}
}

// Options drives InitLogging, zero value logs text at info level to stderr
type Options struct {
	Level      string
	Format     string
	TextColour bool
	LogFile    string
}

// InitLogging replaces Logx, returns a closer for the optional logfile
func InitLogging(opts Options) (io.Closer, error) {
	Logx = logrus.New()

	var closer io.Closer = nopCloser{}
	var output io.Writer = os.Stderr

	// multi-writer to output to .log and stderr
	if opts.LogFile != "" {
		logFile, err := os.OpenFile(opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return closer, fmt.Errorf("failed to open log file %s: %w", opts.LogFile, err)
		}
		output = io.MultiWriter(logFile, os.Stderr)
		closer = logFile
	}

	Logx.SetOutput(output)

	if opts.Format == "json" {
		Logx.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		Logx.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
			ForceColors:     opts.TextColour,
			PadLevelText:    true,
		})
	}

	Logx.SetLevel(logLevelStringSwitch(opts.Level))

	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
