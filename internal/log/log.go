// Package log configures the logrus standard logger from the avplay settings.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/thesyncim/avplay/internal/config"
)

// Setup applies level and format to the standard logger. With logs.write set
// the output goes to a dated file in the logs directory on fs, otherwise to
// stderr. The returned closer releases the log file.
func Setup(fs afero.Fs) (io.Closer, error) {
	logger := logrus.StandardLogger()

	if viper.GetBool(config.LogsJSON) {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(viper.GetString(config.LogsLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if !viper.GetBool(config.LogsWrite) {
		logger.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}

	dir := viper.GetString(config.LogsDir)
	if dir == "" {
		dir = filepath.Join(config.Dir(), "logs")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return f, nil
}
