package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ServiceError 服务错误
type ServiceError struct {
	Code    int    // 错误码
	Message string // 错误信息
	Err     error  // 原始错误
}

// Error 实现 error 接口
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现 errors.Unwrap 接口
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// 错误码定义
const (
	ErrCodeNotFound     = 404
	ErrCodeInvalidInput = 400
	ErrCodeForbidden    = 403
	ErrCodeConflict     = 409
	ErrCodeServerError  = 500
	ErrCodeUnavailable  = 503
)

// NewNotFoundError 创建未找到错误
func NewNotFoundError(resource string, id interface{}) error {
	return &ServiceError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf(ErrRecordNotFoundMsg, resource, id),
	}
}

// NewInvalidInputError 创建非法输入错误
func NewInvalidInputError(message string) error {
	return &ServiceError{
		Code:    ErrCodeInvalidInput,
		Message: message,
	}
}

// NewForbiddenError 创建越权访问错误
func NewForbiddenError(message string) error {
	return &ServiceError{
		Code:    ErrCodeForbidden,
		Message: message,
	}
}

// NewConflictError 创建状态冲突错误
func NewConflictError(message string) error {
	return &ServiceError{
		Code:    ErrCodeConflict,
		Message: message,
	}
}

// NewUnavailableError 创建存储/传输不可用错误
func NewUnavailableError(message string, err error) error {
	return &ServiceError{
		Code:    ErrCodeUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewServerError 创建服务器错误
func NewServerError(message string, err error) error {
	return &ServiceError{
		Code:    ErrCodeServerError,
		Message: message,
		Err:     err,
	}
}

// IsNotFound 判断是否是未找到错误
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsForbidden 判断是否是越权访问错误
func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

// IsConflict 判断是否是状态冲突错误
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

// IsInvalidInput 判断是否是非法输入错误
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrCodeInvalidInput)
}

// IsUnavailable 判断是否是不可用错误
func IsUnavailable(err error) bool {
	return hasCode(err, ErrCodeUnavailable)
}

func hasCode(err error, code int) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code == code
	}
	return false
}

// HandleDBError 处理数据库错误
func HandleDBError(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NewNotFoundError(resource, id)
	}
	return NewUnavailableError(fmt.Sprintf("database error when operating %s", resource), err)
}

// HTTPStatus 返回错误对应的HTTP状态码
func HTTPStatus(err error) int {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code
	}
	return ErrCodeServerError
}
