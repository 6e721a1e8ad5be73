package cfg

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogging points the global logger at w using the configured level and
// format.
func SetupLogging(s Settings, w io.Writer) {
	zerolog.SetGlobalLevel(s.Level())
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if s.LogFormat == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
}
