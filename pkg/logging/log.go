package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is usable before Init; it then writes through slog's default.
var Logger = slog.Default()

func Init() {
	Logger = New(os.Getenv("APP_ENV"), os.Stdout)
	slog.SetDefault(Logger)
}

func New(env string, w io.Writer) *slog.Logger {
	if env == "prod" {
		return slog.New(slog.NewJSONHandler(w, nil))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Discard drops everything; used by tests and quiet CLIs.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
