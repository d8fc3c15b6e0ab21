// users.go — обработчики /api/v1/users: текущий пользователь и
// локальные дополнения ролей (role overrides).
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/yadro-qms/beryll-tracking/internal/api/errors"
	"github.com/yadro-qms/beryll-tracking/internal/api/middleware"
	"github.com/yadro-qms/beryll-tracking/internal/domain/model"
)

// meResponse — сведения о текущем субъекте из JWT.
type meResponse struct {
	Subject       string   `json:"subject"`
	SubjectType   string   `json:"subjectType"`
	Username      string   `json:"username,omitempty"`
	Email         string   `json:"email,omitempty"`
	IdpRole       string   `json:"idpRole,omitempty"`
	RoleOverride  *string  `json:"roleOverride,omitempty"`
	EffectiveRole string   `json:"effectiveRole,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	ClientID      string   `json:"clientId,omitempty"`
}

// GetMe — GET /api/v1/users/me.
// Возвращает субъекта текущего запроса: роли для пользователя,
// scopes для сервисного аккаунта.
func (h *APIHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Subject:       claims.Subject,
		SubjectType:   string(claims.SubjectType),
		Username:      claims.PreferredUsername,
		Email:         claims.Email,
		IdpRole:       claims.IdpRole,
		RoleOverride:  claims.RoleOverride,
		EffectiveRole: claims.EffectiveRole,
		Scopes:        claims.Scopes,
		ClientID:      claims.ClientID,
	})
}

// roleOverrideResponse — локальное дополнение роли в API.
type roleOverrideResponse struct {
	ID             string    `json:"id"`
	KeycloakUserID string    `json:"keycloakUserId"`
	Username       string    `json:"username"`
	AdditionalRole string    `json:"additionalRole"`
	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func mapRoleOverride(o *model.RoleOverride) roleOverrideResponse {
	return roleOverrideResponse{
		ID:             o.ID,
		KeycloakUserID: o.KeycloakUserID,
		Username:       o.Username,
		AdditionalRole: o.AdditionalRole,
		CreatedBy:      o.CreatedBy,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// ListRoleOverrides — GET /api/v1/users/role-overrides.
// Доступ: admin.
func (h *APIHandler) ListRoleOverrides(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)

	overrides, total, err := h.users.ListOverrides(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка role overrides")
		return
	}

	items := make([]roleOverrideResponse, 0, len(overrides))
	for _, o := range overrides {
		items = append(items, mapRoleOverride(o))
	}
	writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

// SetRoleOverride — PUT /api/v1/users/role-overrides/{userId}.
// Устанавливает дополнение роли пользователю Keycloak. Доступ: admin.
func (h *APIHandler) SetRoleOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.Role == "" {
		apierrors.ValidationError(w, "Роль обязательна")
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	createdBy := ""
	if claims != nil {
		createdBy = claims.PreferredUsername
	}

	override, err := h.users.SetOverride(r.Context(), userID, req.Username, req.Role, createdBy)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка установки role override")
		return
	}

	writeJSON(w, http.StatusOK, mapRoleOverride(override))
}

// DeleteRoleOverride — DELETE /api/v1/users/role-overrides/{userId}.
// Доступ: admin.
func (h *APIHandler) DeleteRoleOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	if err := h.users.DeleteOverride(r.Context(), userID); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления role override")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
