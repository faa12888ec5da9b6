package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the zerolog logger with the specified debug mode and output format.
func InitLogger(debug, human bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano                 // always initialize base logger with timestamp.
	base := zerolog.New(os.Stdout).With().Timestamp().Logger() // initialize base logger.
	if human {
		log.Logger = base.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339Nano,
		}) // select output format.
	} else {
		log.Logger = base // use JSON logger.
	}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel) // set debug level.
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel) // set info level.
	}
}

// LogDispatch logs a completed plugin operation.
func LogDispatch(backend, pluginID, op string, elapsed time.Duration, err error) {
	if err != nil {
		log.Warn().
			Err(err).
			Str("event", "dispatch_failed").
			Str("backend", backend).
			Str("plugin_id", pluginID).
			Str("op", op).
			Dur("duration", elapsed).
			Msg("plugin call failed")

		return
	}

	log.Debug().
		Str("event", "dispatch").
		Str("backend", backend).
		Str("plugin_id", pluginID).
		Str("op", op).
		Dur("duration", elapsed).
		Msg("plugin call completed")
}

// LogRequest logs a request frame received by the server.
func LogRequest(clientIP, target, op string, size, activeConns int) {
	log.Info().
		Str("event", "request_received").
		Str("client_ip", clientIP).
		Str("plugin_id", target).
		Str("op", op).
		Int("request_bytes", size).
		Int("active_connections", activeConns).
		Msg("received request")
}

// LogResponse logs a response frame sent by the server.
func LogResponse(clientIP, target, op string, size int, code string, activeConns int) {
	log.Info().
		Str("event", "response_sent").
		Str("client_ip", clientIP).
		Str("plugin_id", target).
		Str("op", op).
		Int("response_bytes", size).
		Str("error_code", code).
		Int("active_connections", activeConns).
		Msg("sent response")
}
