package logs

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New - logger do pliku (JSON) + opcjonalnie konsola.
// Pusty logFilePath = tylko konsola.
func New(logFilePath string, withConsole bool, level string) zerolog.Logger {
	// Format czasu
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if logFilePath != "" {
		// Utwórz plik logów (append + tworzenie jeśli brak)
		logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			log.Fatal().Err(err).Msg("Nie można otworzyć pliku log")
		}
		writers = append(writers, logFile)
	}
	if withConsole || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	var writer io.Writer = writers[0]
	if len(writers) > 1 {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	// Logger z timestampem i info o miejscu wywołania
	logger := zerolog.New(writer).Level(lvl).With().
		Timestamp().
		Caller().
		Logger()

	// Ustaw globalny logger
	log.Logger = logger

	return logger
}

// Component - logger potomny dla podsystemu
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
