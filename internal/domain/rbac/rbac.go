// Пакет rbac - политика доступа на основе групп пользователя.
// Политика - закрытый набор предикатов над множеством групп вызывающего.
// Предикаты чистые и не зависят от хранилища.
package rbac

import "fmt"

// Группы, известные политике доступа.
const (
	GroupAdmin   = "Admin"
	GroupAnalyst = "Analyst"
	GroupViewer  = "Viewer"
)

// Policy - предикат доступа, объявляемый для маршрута.
type Policy int

const (
	// Authenticated допускает любого аутентифицированного пользователя.
	Authenticated Policy = iota
	// AdminOrAnalyst - группа Admin или Analyst.
	AdminOrAnalyst
	// Viewer - группа Viewer.
	Viewer
	// Admin - группа Admin.
	Admin
	// AnyGroup - любая из групп Admin, Analyst, Viewer.
	AnyGroup
)

var policyNames = map[Policy]string{
	Authenticated:  "Authenticated",
	AdminOrAnalyst: "IsAdminOrAnalyst",
	Viewer:         "IsViewer",
	Admin:          "IsAdmin",
	AnyGroup:       "AnyGroup",
}

// String возвращает имя политики для логов.
func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Allows вычисляет предикат политики для набора групп.
// Неизвестная политика ничего не разрешает.
func (p Policy) Allows(groups []string) bool {
	set := toSet(groups)
	switch p {
	case Authenticated:
		return true
	case AdminOrAnalyst:
		return set[GroupAdmin] || set[GroupAnalyst]
	case Viewer:
		return set[GroupViewer]
	case Admin:
		return set[GroupAdmin]
	case AnyGroup:
		return set[GroupAdmin] || set[GroupAnalyst] || set[GroupViewer]
	default:
		return false
	}
}

// Rule - политика маршрута в обычном и строгом режимах.
type Rule struct {
	Default Policy
	Strict  Policy
}

// Uniform возвращает правило с одинаковой политикой в обоих режимах.
func Uniform(p Policy) Rule {
	return Rule{Default: p, Strict: p}
}

// Select выбирает политику в зависимости от режима.
func (r Rule) Select(strict bool) Policy {
	if strict {
		return r.Strict
	}
	return r.Default
}

// IsOwnerOrAdmin - может ли пользователь менять объект владельца ownerID.
func IsOwnerOrAdmin(userID, ownerID int64, groups []string) bool {
	return userID == ownerID || Admin.Allows(groups)
}

// IsValidGroup проверяет, является ли строка известной группой.
func IsValidGroup(group string) bool {
	switch group {
	case GroupAdmin, GroupAnalyst, GroupViewer:
		return true
	}
	return false
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
