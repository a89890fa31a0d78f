package cli

import (
	"errors"
)

// Коды завершения процесса.
const (
	ExitFailure = 1
	ExitNoInput = 2
)

// ErrNoInput — вход не передан ни флагом, ни через stdin.
var ErrNoInput = errors.New("no --input provided and no stdin data: provide --input <file.json> or pipe JSON via stdin")

// ExitError — ошибка команды с кодом завершения.
type ExitError struct {
	Code int
	Err  error
}

// Error реализует интерфейс error.
func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap возвращает базовую ошибку.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode возвращает код завершения для ошибки команды.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
