package testlog

import (
	"testing"

	"github.com/danmuck/labctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start configures the shared test logging profile and marks the test.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}

// Logger writes through t.Log so output stays attached to the test that
// produced it and only shows on failure or -v.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	writer := zerolog.NewConsoleWriter(
		zerolog.ConsoleTestWriter(t),
		func(w *zerolog.ConsoleWriter) {
			w.NoColor = true
			w.PartsExclude = []string{zerolog.TimestampFieldName}
		},
	)
	return zerolog.New(writer).Level(zerolog.DebugLevel).With().Str("test", t.Name()).Logger()
}
