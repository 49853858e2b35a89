// Пакет rbac — закрытый набор ролей User Module и логика role gate.
// Роль назначается пользователю ровно одна; доступ к операции открыт,
// если роль вызывающего входит в требуемый набор (логическое ИЛИ).
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleOther      = "other"
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// roleWeight — вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleOther:      1,
	RoleUser:       2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// AllRoles возвращает все допустимые роли.
func AllRoles() []string {
	return []string{RoleSuperAdmin, RoleAdmin, RoleUser, RoleOther}
}

// IsSuperAdmin проверяет, содержит ли набор ролей super_admin.
func IsSuperAdmin(roles []string) bool {
	for _, r := range roles {
		if r == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// AnyMatch реализует role gate: true, если хотя бы одна роль вызывающего
// входит в required. Пустой required означает «ролевых ограничений нет».
func AnyMatch(held, required []string) bool {
	if len(required) == 0 {
		return true
	}
	requiredSet := toSet(required)
	for _, r := range held {
		if requiredSet[r] {
			return true
		}
	}
	return false
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст или не содержит допустимых ролей — возвращает пустую строку.
func HighestRole(roles []string) string {
	highest := ""
	for _, r := range roles {
		if roleWeight[r] > roleWeight[highest] {
			highest = r
		}
	}
	return highest
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
