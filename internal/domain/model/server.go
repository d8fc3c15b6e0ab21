// Пакет model — доменные модели Beryll Tracking Module.
package model

import "time"

// Статусы жизненного цикла сервера.
const (
	// ServerStatusNew — сервер принят на учёт, сборка не начата.
	ServerStatusNew = "NEW"
	// ServerStatusInWork — сервер в работе (сборка/доукомплектация).
	ServerStatusInWork = "IN_WORK"
	// ServerStatusAssembled — стадия сборки одобрена инспектором.
	ServerStatusAssembled = "ASSEMBLED"
	// ServerStatusVerified — стадия верификации одобрена, сервер готов к отгрузке.
	ServerStatusVerified = "VERIFIED"
	// ServerStatusArchived — сервер выведен из учёта.
	ServerStatusArchived = "ARCHIVED"
)

// serverStatuses — допустимые статусы сервера.
var serverStatuses = map[string]bool{
	ServerStatusNew:       true,
	ServerStatusInWork:    true,
	ServerStatusAssembled: true,
	ServerStatusVerified:  true,
	ServerStatusArchived:  true,
}

// IsValidServerStatus проверяет, является ли строка допустимым статусом сервера.
func IsValidServerStatus(s string) bool {
	return serverStatuses[s]
}

// Server — физическая машина, агрегат для комплектующих и верификаций.
// Хранится в таблице servers.
type Server struct {
	// ID — UUID записи
	ID string
	// SerialNumber — заводской серийный номер шасси
	SerialNumber *string
	// APKSerialNumber — серийный номер АПК (внешний, для паспорта изделия)
	APKSerialNumber *string
	// Hostname — сетевое имя
	Hostname *string
	// IPAddress — адрес управления
	IPAddress *string
	// Status — статус жизненного цикла (NEW, IN_WORK, ASSEMBLED, VERIFIED, ARCHIVED)
	Status string
	// Notes — произвольные заметки
	Notes *string
	// CreatedAt — время постановки на учёт
	CreatedAt time.Time
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
}

// ServerRef — краткая ссылка на сервер для вложенных ответов
// (конфликты серийных номеров, очередь верификации).
type ServerRef struct {
	ID              string
	SerialNumber    *string
	APKSerialNumber *string
	Hostname        *string
	IPAddress       *string
	Status          string
}

// Ref возвращает краткую ссылку на сервер.
func (s *Server) Ref() ServerRef {
	return ServerRef{
		ID:              s.ID,
		SerialNumber:    s.SerialNumber,
		APKSerialNumber: s.APKSerialNumber,
		Hostname:        s.Hostname,
		IPAddress:       s.IPAddress,
		Status:          s.Status,
	}
}
