package steps

import "errors"

// Ошибки вызова.
//
// Наружу они не возвращаются: Invoke превращает их в значение
// {fetchError: ...}.
var (
	// ErrNoEndpoint — endpoint + url_ext пусты, запрос не выполняется.
	ErrNoEndpoint = errors.New("No endpoint provided")

	// ErrDecodeResponse — успешный ответ с JSON content-type не декодируется.
	ErrDecodeResponse = errors.New("decode response body")

	// ErrResponseTooLarge — тело ответа больше Config.MaxResponseBody.
	ErrResponseTooLarge = errors.New("response body exceeds limit")

	// ErrRetriesExhausted — цикл попыток завершился без результата.
	ErrRetriesExhausted = errors.New("Retries exhausted")
)
