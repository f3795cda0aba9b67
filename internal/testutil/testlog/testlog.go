package testlog

import (
	"testing"

	"github.com/danmuck/meshdecode/internal/logging"
	"github.com/rs/zerolog/log"
)

// Start configures test logging once and marks the test in the log stream.
func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Debug().Str("test", t.Name()).Msg("test start")
}
