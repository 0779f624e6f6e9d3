package logs

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// MaxLogFileSizeMB é o tamanho máximo do arquivo de log antes da rotação (10MB)
	MaxLogFileSizeMB = 10
	// MaxLogFiles é o número máximo de arquivos de log rotacionados
	MaxLogFiles = 5
)

// openLogFile cria o sink rotacionado de --log-file.
// O arquivo é aberto uma vez aqui para que permissão/diretório inválido falhe no setup.
func openLogFile(path string) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    MaxLogFileSizeMB,
		MaxBackups: MaxLogFiles,
	}, nil
}
