package cmd

import (
	"errors"
	"fmt"

	"k8s-dev-loadtest/internal/config"
)

// Exit codes do processo
const (
	ExitPass          = 0
	ExitVerdictFailed = 1
	ExitConfigError   = 2
	ExitRuntimeError  = 3
)

// ExitError erro com exit code associado
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// withExitCode classifica err: configuração = 2, demais = 3
func withExitCode(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	var cfgErr *config.ConfigError
	if errors.As(err, &cfgErr) {
		return &ExitError{Code: ExitConfigError, Err: err}
	}
	return &ExitError{Code: ExitRuntimeError, Err: err}
}

// configError marca erros de flags/arquivos de configuração
func configError(source string, err error) error {
	return &ExitError{Code: ExitConfigError, Err: &config.ConfigError{Source: source, Err: err}}
}

// ExitCode extrai o exit code de um erro retornado por Execute
func ExitCode(err error) int {
	if err == nil {
		return ExitPass
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	// Erros do cobra (flag desconhecida, argumento inválido)
	return ExitConfigError
}
