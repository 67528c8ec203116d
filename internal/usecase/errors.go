package usecase

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/saga"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// 入力不正（永続化の前に弾く）
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(e.Fields, ", "))
}

// storeがinsert/deleteを拒否した、または時間切れ
type PersistenceError struct {
	Op      string // insert_order / insert_order_items
	Message string
	Err     error
	Timeout bool // 一時的なエラー（リトライしてよい）
}

func (e *PersistenceError) Error() string {
	return e.Message
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// 補償（注文の削除）自体の失敗。呼び出し元へのメッセージには出さない。
type CompensationError = saga.CompensationError

// StatusOf はエラーの種類をHTTPステータスにする。
func StatusOf(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		if pe.Timeout {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
	if he, ok := AsHTTPError(err); ok {
		return he.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage は呼び出し元に返す文言。補償の失敗などの内部事情は含めない。
func PublicMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe.Message
	}
	if he, ok := AsHTTPError(err); ok {
		return he.Message
	}
	return "internal error"
}
