// Пакет rbac — логика определения эффективной роли пользователя.
// Реализует двухуровневую авторизацию: роли из IdP + локальные дополнения.
// Правила: итоговая роль = max(роль из IdP, локальное дополнение).
// Роль можно только повысить, не понизить.
package rbac

// Роли в порядке возрастания привилегий.
const (
	// RoleReadonly — просмотр серверов, комплектующих, истории и очереди.
	RoleReadonly = "readonly"
	// RoleEngineer — сборщик: мутации комплектующих, чеклисты, подача на согласование.
	RoleEngineer = "engineer"
	// RoleInspector — инспектор ОТК: всё, что engineer, плюс решения по заявкам.
	RoleInspector = "inspector"
	// RoleAdmin — полный доступ, включая удаление комплектующих и архивацию.
	RoleAdmin = "admin"
)

// Scopes сервисных аккаунтов. Роли не присваиваются SA;
// доступ определяется scopes из токена client credentials.
const (
	// ScopeRead — чтение серверов, комплектующих, истории.
	ScopeRead = "beryll:read"
	// ScopeWrite — мутации комплектующих (сканер, импорт инвентаря).
	ScopeWrite = "beryll:write"
)

// roleWeight — вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleReadonly:  1,
	RoleEngineer:  2,
	RoleInspector: 3,
	RoleAdmin:     4,
}

// GroupMapping — соответствие групп IdP ролям.
type GroupMapping struct {
	AdminGroups     []string
	InspectorGroups []string
	EngineerGroups  []string
	ReadonlyGroups  []string
}

// EffectiveRole вычисляет итоговую роль = max(idpRole, roleOverride).
// Если roleOverride == nil, возвращает idpRole.
// Роль можно только повысить, не понизить.
func EffectiveRole(idpRole string, roleOverride *string) string {
	if roleOverride == nil {
		return idpRole
	}
	return maxRole(idpRole, *roleOverride)
}

// maxRole возвращает роль с максимальными привилегиями из двух.
func maxRole(a, b string) string {
	wa := roleWeight[a]
	wb := roleWeight[b]
	if wa >= wb {
		return a
	}
	return b
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст — возвращает пустую строку.
func HighestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		highest = maxRole(highest, r)
	}
	return highest
}

// MapGroupsToRole определяет роль пользователя на основе его групп IdP.
// Возвращает максимальную роль из всех совпадений.
// Если ни одна группа не совпала — возвращает пустую строку.
func MapGroupsToRole(groups []string, mapping GroupMapping) string {
	adminSet := toSet(mapping.AdminGroups)
	inspectorSet := toSet(mapping.InspectorGroups)
	engineerSet := toSet(mapping.EngineerGroups)
	readonlySet := toSet(mapping.ReadonlyGroups)

	var roles []string
	for _, g := range groups {
		if adminSet[g] {
			roles = append(roles, RoleAdmin)
		}
		if inspectorSet[g] {
			roles = append(roles, RoleInspector)
		}
		if engineerSet[g] {
			roles = append(roles, RoleEngineer)
		}
		if readonlySet[g] {
			roles = append(roles, RoleReadonly)
		}
	}

	return HighestRole(roles)
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// AtLeast сообщает, достаточно ли привилегий role для требуемой required.
// Неизвестные роли считаются недостаточными.
func AtLeast(role, required string) bool {
	w, ok := roleWeight[role]
	if !ok {
		return false
	}
	return w >= roleWeight[required]
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
