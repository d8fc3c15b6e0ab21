// Пакет errors — конструкторы стандартных ошибок HTTP API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeConflict            = "CONFLICT"
	CodeSerialConflict      = "SERIAL_CONFLICT"
	CodeChecklistIncomplete = "CHECKLIST_INCOMPLETE"
	CodeStageOrder          = "STAGE_ORDER_VIOLATION"
	CodeServerArchived      = "SERVER_ARCHIVED"
	CodeInternalError       = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Details — дополнительный контекст (например, где занят серийный
	// номер при конфликте). Опционален.
	Details any `json:"details,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	WriteErrorDetails(w, statusCode, code, message, nil)
}

// WriteErrorDetails записывает ответ ошибки с дополнительным контекстом.
func WriteErrorDetails(w http.ResponseWriter, statusCode int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// SerialConflict — 409 серийный номер занят активным комплектующим.
// details описывает, где именно занят номер.
func SerialConflict(w http.ResponseWriter, message string, details any) {
	WriteErrorDetails(w, http.StatusConflict, CodeSerialConflict, message, details)
}

// ChecklistIncomplete — 409 обязательные пункты чеклиста не выполнены.
func ChecklistIncomplete(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeChecklistIncomplete, message)
}

// StageOrder — 409 нарушен порядок прохождения стадий.
func StageOrder(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeStageOrder, message)
}

// ServerArchived — 409 сервер архивирован и неизменяем.
func ServerArchived(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeServerArchived, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
