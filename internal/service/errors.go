// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — операция запрещена для вызывающего.
	ErrForbidden = errors.New("операция запрещена")
	// ErrUnauthorized — неверные учётные данные или недействительная сессия.
	ErrUnauthorized = errors.New("не авторизован")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrOperationFailed — операция не завершилась, изменения откачены.
	ErrOperationFailed = errors.New("операция не выполнена")
)
