package window

import (
	"github.com/bongobongo2020/nexrift/internal/logging"
)

// wailsLogger routes the window toolkit's log output through our logger.
type wailsLogger struct {
	log *logging.Logger
}

func (l wailsLogger) Print(message string)   { l.log.Info().Msg(message) }
func (l wailsLogger) Trace(message string)   { l.log.Debug().Msg(message) }
func (l wailsLogger) Debug(message string)   { l.log.Debug().Msg(message) }
func (l wailsLogger) Info(message string)    { l.log.Debug().Msg(message) }
func (l wailsLogger) Warning(message string) { l.log.Warn().Msg(message) }
func (l wailsLogger) Error(message string)   { l.log.Error().Msg(message) }
func (l wailsLogger) Fatal(message string)   { l.log.Fatal().Msg(message) }
