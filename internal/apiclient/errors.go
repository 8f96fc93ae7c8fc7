package apiclient

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// DefaultErrorMessage показывается, когда API не прислал собственного сообщения.
const DefaultErrorMessage = "Something went wrong"

// APIError описывает неудачный запрос к API.
type APIError struct {
	// Status равен 0 для ошибок транспорта.
	Status int
	// Message берётся из поля message тела ответа или равен DefaultErrorMessage.
	Message    string
	FromServer bool
	Err        error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newStatusError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Message: DefaultErrorMessage}
	if gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "message"); msg.Type == gjson.String && msg.Str != "" {
			apiErr.Message = msg.Str
			apiErr.FromServer = true
		}
	}
	return apiErr
}

// Message возвращает текст ошибки для пользователя: сообщение сервера,
// если оно есть, иначе fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.FromServer {
		return apiErr.Message
	}
	return fallback
}

// StatusCode возвращает HTTP-статус ошибки API или 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
