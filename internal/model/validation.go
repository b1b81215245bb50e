package model

import "errors"

// ValidationError 表示调用方输入不合法，必须在任何持久化或网络调用之前被拒绝。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

// IsValidation 判断 err 链上是否存在 ValidationError。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
