package response

// AppError 接口层错误：业务码 + 错误键 + 本地化消息，Err 为原始错误（仅记日志，不下发）
type AppError struct {
	Code    int
	Key     string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	label := e.Key
	if label == "" {
		label = e.Message
	}
	if e.Err == nil {
		return label
	}
	return label + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code int, key, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Key:     key,
		Message: message,
		Err:     err,
	}
}
