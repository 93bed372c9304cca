//go:build !logless

package logger

import (
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Log is the package-level structured logger every storage component logs
// through. Under the logless build tag it is replaced by logger.empty.go's
// no-op EmptyLog so release binaries pay nothing for log call sites.
var Log = zlog.With().Caller().Logger().Output(zerolog.ConsoleWriter{Out: os.Stderr})

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}
