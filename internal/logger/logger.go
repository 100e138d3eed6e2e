package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

func init() {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)

	// LOG_LEVEL falls back to info when unset or unknown
	if err := SetLevel(os.Getenv("LOG_LEVEL")); err != nil {
		Log.SetLevel(logrus.InfoLevel)
	}

	if os.Getenv("LOG_FORMAT") == "text" {
		UseTextFormat()
		return
	}
	UseJSONFormat()
}

// SetLevel parses level (debug, info, warn, error) and applies it
func SetLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Log.SetLevel(parsed)
	return nil
}

// UseJSONFormat selects the structured formatter used by the sync server
func UseJSONFormat() {
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// UseTextFormat selects the human readable formatter used by the terminal client
func UseTextFormat() {
	Log.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "15:04:05",
		FullTimestamp:   true,
	})
}

// SetOutput redirects log output. The CLI logs to stderr.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}
