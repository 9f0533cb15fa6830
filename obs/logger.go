// Package obs builds the process-wide logger and the batch metrics.
package obs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrorLogPrefix prefixes the daily critical-error log file names.
const ErrorLogPrefix = "critical-error-log"

// LogConfig selects the console level and format and the error log directory.
type LogConfig struct {
	Level  string
	Pretty bool
	App    string
	Ver    string
	// ErrorDir receives critical-error-log<YYYY-MM-DD>.log files. Empty disables them.
	ErrorDir string
}

// NewLogger builds the logger used for the whole process. Console output goes
// to stderr at the configured level; records at error level and above are
// also appended as JSON lines to the day's critical-error log. The returned
// close function syncs the logger and closes the log file.
func NewLogger(c LogConfig) (*zap.Logger, func() error, error) {
	level := new(zapcore.Level)
	if err := level.Set(c.Level); err != nil {
		*level = zapcore.WarnLevel
	}

	var encCfg zapcore.EncoderConfig
	if c.Pretty {
		encCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encCfg = zap.NewProductionEncoderConfig()
	}
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEnc zapcore.Encoder
	if c.Pretty {
		consoleEnc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		consoleEnc = zapcore.NewJSONEncoder(encCfg)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(*level)),
	}

	var file *DailyFile
	if c.ErrorDir != "" {
		if err := os.MkdirAll(c.ErrorDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create error log directory %s: %w", c.ErrorDir, err)
		}
		file = NewDailyFile(c.ErrorDir, ErrorLogPrefix)
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.TimeKey = "ts"
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), file, zapcore.ErrorLevel))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).With(
		zap.String("service", c.App),
		zap.String("version", c.Ver),
	)

	closeFn := func() error {
		// Sync on stderr fails on some terminals; only file errors matter.
		_ = l.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return l, closeFn, nil
}

// DailyFile is a zapcore.WriteSyncer appending to dir/<prefix><YYYY-MM-DD>.log.
// The file is opened on the first write, and a write on a new day switches
// to that day's file.
type DailyFile struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

// NewDailyFile returns a DailyFile writing into dir. Nothing touches the
// filesystem until the first write.
func NewDailyFile(dir, prefix string) *DailyFile {
	return &DailyFile{dir: dir, prefix: prefix, now: time.Now}
}

// Path returns the file name used for writes made at t.
func (d *DailyFile) Path(t time.Time) string {
	return filepath.Join(d.dir, d.prefix+t.Format(time.DateOnly)+".log")
}

// Write appends p to the file for the current day, opening it if needed.
func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	day := now.Format(time.DateOnly)
	if d.file == nil || day != d.day {
		if err := d.rotateLocked(now); err != nil {
			return 0, err
		}
		d.day = day
	}
	return d.file.Write(p)
}

func (d *DailyFile) rotateLocked(now time.Time) error {
	if d.file != nil {
		if err := d.file.Close(); err != nil {
			return fmt.Errorf("close error log: %w", err)
		}
		d.file = nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create error log directory %s: %w", d.dir, err)
	}
	path := d.Path(now)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open error log %s: %w", path, err)
	}
	d.file = file
	return nil
}

// Sync flushes the open file, if any.
func (d *DailyFile) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	return d.file.Sync()
}

// Close closes the current file, if one was opened.
func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
