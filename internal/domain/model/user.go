package model

import "time"

// RoleOverride — локальное дополнение роли пользователя.
// Роли приходят из групп Keycloak; override позволяет администратору
// поднять роль локально, не трогая IdP. Хранится в таблице role_overrides.
type RoleOverride struct {
	// ID — UUID записи
	ID string
	// KeycloakUserID — идентификатор пользователя в Keycloak (sub)
	KeycloakUserID string
	// Username — кэшированное имя пользователя
	Username string
	// AdditionalRole — дополнительная роль (readonly, engineer, inspector, admin)
	AdditionalRole string
	// CreatedBy — кто установил override (username администратора)
	CreatedBy string
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
