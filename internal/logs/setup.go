package logs

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configuração do logger global
type Options struct {
	Debug bool   // Nível Debug (default: Info)
	JSON  bool   // Linhas JSON no stderr em vez do ConsoleWriter
	File  string // Arquivo de log adicional (JSON, rotacionado); vazio desativa
}

// Setup configura o logger global do zerolog. O io.Closer retornado fecha o
// arquivo de log (nil-safe quando não há arquivo).
func Setup(opts Options) (io.Closer, error) {
	return setup(opts, os.Stderr)
}

func setup(opts Options, stderr io.Writer) (io.Closer, error) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var console io.Writer = stderr
	if !opts.JSON {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: "15:04:05"}
	}

	out := console
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file, err := openLogFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(console, file)
		closer = file
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
