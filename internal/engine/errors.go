package engine

import (
	"errors"
	"strconv"
)

// Ошибки нормализации входа.
var (
	// ErrInvalidInput — вход не является ни массивом, ни объектом шагов.
	ErrInvalidInput = errors.New("input must be an array or an object (map)")

	// ErrInvalidStep — элемент входа не является объектом.
	ErrInvalidStep = errors.New("step must be an object")
)

// ValidationError — ошибка нормализации с контекстом.
type ValidationError struct {
	Index   int    // 1-based позиция шага во входе
	Key     string // ключ шага, если вход был объектом
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Key != "" {
		return "step " + strconv.Quote(e.Key) + ": " + e.Message
	}
	return "step #" + strconv.Itoa(e.Index) + ": " + e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(index int, key, message string, err error) *ValidationError {
	return &ValidationError{
		Index:   index,
		Key:     key,
		Message: message,
		Err:     err,
	}
}
