package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaiso/Relay/internal/jsonv"
	"golang.org/x/term"
)

// readSteps читает документ шагов из файла или из stdin.
//
// Пустой path и stdin-терминал дают ErrNoInput (код 2).
// Ошибки чтения и разбора дают код 1.
func readSteps(path string, stdin io.Reader) (jsonv.Value, error) {
	var (
		data []byte
		err  error
	)

	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		if isTerminal(stdin) {
			return jsonv.Value{}, &ExitError{Code: ExitNoInput, Err: ErrNoInput}
		}
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return jsonv.Value{}, &ExitError{Code: ExitFailure, Err: fmt.Errorf("failed to read input: %w", err)}
	}

	v, err := parseSteps(data, path)
	if err != nil {
		return jsonv.Value{}, &ExitError{Code: ExitFailure, Err: fmt.Errorf("failed to read input: %w", err)}
	}
	return v, nil
}

// parseSteps разбирает JSON или YAML.
// YAML выбирается по расширению файла или если содержимое не JSON.
func parseSteps(data []byte, path string) (jsonv.Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return jsonv.Value{}, errEmptyInput
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return jsonv.ParseYAML(data)
	}

	v, err := jsonv.Parse(data)
	if err == nil {
		return v, nil
	}
	if y, yerr := jsonv.ParseYAML(data); yerr == nil {
		return y, nil
	}
	return jsonv.Value{}, err
}

var errEmptyInput = errors.New("input is empty")

// isTerminal проверяет, что r — терминал.
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
