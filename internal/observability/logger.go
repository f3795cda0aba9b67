package observability

import (
	"os"

	"github.com/danmuck/meshdecode/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the process logger for app and installs it as log.Logger.
// Logs go to stderr; stdout belongs to command output.
func InitLogger(app string) zerolog.Logger {
	logger := zerolog.New(logging.Writer(os.Stderr)).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
