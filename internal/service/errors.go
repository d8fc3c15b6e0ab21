// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс или гонка решений).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidRole — некорректная роль.
	ErrInvalidRole = errors.New("некорректная роль: допустимые значения — readonly, engineer, inspector, admin")
	// ErrChecklistIncomplete — не выполнены обязательные пункты чеклиста стадии.
	ErrChecklistIncomplete = errors.New("обязательные пункты чеклиста не выполнены")
	// ErrStageOrder — предыдущая стадия ещё не одобрена.
	ErrStageOrder = errors.New("предыдущая стадия не одобрена")
	// ErrServerArchived — сервер выведен из учёта, мутации запрещены.
	ErrServerArchived = errors.New("сервер архивирован")
	// ErrComponentReplaced — комплектующее заменено, мутации запрещены.
	ErrComponentReplaced = errors.New("комплектующее заменено и неизменяемо")
)

// SerialConflictError — конфликт серийного номера: номер уже числится за
// активным комплектующим парка. Несёт сведения для содержательного ответа
// 409: какой номер, какое комплектующее, в каком сервере.
type SerialConflictError struct {
	// Serial — конфликтующий серийный номер
	Serial string
	// Existing — активное комплектующее, за которым числится номер
	Existing *model.ComponentWithServer
}

func (e *SerialConflictError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("серийный номер %s уже числится за комплектующим %s (сервер %s)",
			e.Serial, e.Existing.ID, e.Existing.ServerID)
	}
	return fmt.Sprintf("серийный номер %s уже занят", e.Serial)
}

// Is позволяет errors.Is(err, ErrConflict) для конфликтов серийников.
func (e *SerialConflictError) Is(target error) bool {
	return target == ErrConflict
}
