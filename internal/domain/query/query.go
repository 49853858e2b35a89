// Пакет query — чистое построение фильтров, сортировки и пагинации
// для выборки пользователей. Без I/O: результат — структуры предикатов
// и порядка, которые слой repository превращает в SQL.
package query

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidPagination — некорректные параметры пагинации.
var ErrInvalidPagination = errors.New("некорректные параметры пагинации")

// Pagination — смещение и размер страницы для SQL LIMIT/OFFSET.
type Pagination struct {
	Offset int
	Limit  int
}

// NewPagination строит Pagination из номера страницы и размера.
// Оба параметра обязательны и должны быть >= 1.
func NewPagination(page, limit int) (Pagination, error) {
	if page < 1 || limit < 1 {
		return Pagination{}, ErrInvalidPagination
	}
	return Pagination{
		Offset: (page - 1) * limit,
		Limit:  limit,
	}, nil
}

// Match — вид сравнения в предикате.
type Match int

const (
	// MatchContains — подстрочное совпадение без учёта регистра (ILIKE).
	MatchContains Match = iota
	// MatchIn — точное вхождение в набор значений.
	MatchIn
)

// Логические имена полей. Слой repository маппит их на SQL-колонки
// соответствующих связанных таблиц.
const (
	FieldFirstName = "profile.first_name"
	FieldLastName  = "profile.last_name"
	FieldTitle     = "profile.title"
	FieldRoleName  = "role.name"
	FieldCreatedAt = "created_at"
)

// Predicate — одно условие сравнения поля.
type Predicate struct {
	Field  string
	Match  Match
	Values []string
}

// Group — группа предикатов, объединяемых через OR.
// Группы между собой объединяются через AND.
type Group struct {
	Any []Predicate
}

// Filters — распознанные ключи фильтрации списка пользователей.
// Каждое значение — список строк свободного ввода.
type Filters struct {
	Name  []string
	Role  []string
	Title []string
}

// BuildFilters превращает фильтры в набор групп предикатов.
// name и title — подстрочный поиск (name разворачивается в first_name
// и last_name), role — точное вхождение в набор. Пустые и состоящие
// из пробелов значения отбрасываются; внутренние пробелы схлопываются.
func BuildFilters(f Filters) []Group {
	var groups []Group

	if values := cleanValues(f.Name); len(values) > 0 {
		g := Group{}
		for _, v := range values {
			g.Any = append(g.Any,
				Predicate{Field: FieldFirstName, Match: MatchContains, Values: []string{v}},
				Predicate{Field: FieldLastName, Match: MatchContains, Values: []string{v}},
			)
		}
		groups = append(groups, g)
	}

	if values := cleanValues(f.Role); len(values) > 0 {
		groups = append(groups, Group{Any: []Predicate{
			{Field: FieldRoleName, Match: MatchIn, Values: values},
		}})
	}

	if values := cleanValues(f.Title); len(values) > 0 {
		g := Group{}
		for _, v := range values {
			g.Any = append(g.Any, Predicate{Field: FieldTitle, Match: MatchContains, Values: []string{v}})
		}
		groups = append(groups, g)
	}

	return groups
}

// Direction — направление сортировки.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order — одна пара (поле, направление) в итоговом порядке сортировки.
type Order struct {
	Field     string
	Direction Direction
}

// BuildOrder строит порядок сортировки из ключей sortTypes и позиционно
// сопоставленных направлений sortBy. Направление по умолчанию — desc.
// name разворачивается в first_name и last_name профиля, title — в
// profile.title, role — в role.name. Неизвестные ключи пропускаются.
// Пустой результат заменяется порядком по умолчанию: created_at desc.
func BuildOrder(sortTypes, sortBy []string) []Order {
	var order []Order

	for i, key := range sortTypes {
		dir := Desc
		if i < len(sortBy) && parseDirection(sortBy[i]) == Asc {
			dir = Asc
		}
		switch key {
		case "name":
			order = append(order,
				Order{Field: FieldFirstName, Direction: dir},
				Order{Field: FieldLastName, Direction: dir},
			)
		case "role":
			order = append(order, Order{Field: FieldRoleName, Direction: dir})
		case "title":
			order = append(order, Order{Field: FieldTitle, Direction: dir})
		}
	}

	if len(order) == 0 {
		order = append(order, Order{Field: FieldCreatedAt, Direction: Desc})
	}

	return order
}

var spaceRe = regexp.MustCompile(`\s+`)

// cleanValues отбрасывает пустые и пробельные значения,
// схлопывает внутренние пробелы и обрезает края.
func cleanValues(values []string) []string {
	var result []string
	for _, v := range values {
		v = strings.TrimSpace(spaceRe.ReplaceAllString(v, " "))
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}

// parseDirection распознаёт направление сортировки; всё, кроме "asc",
// трактуется как desc.
func parseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "asc") {
		return Asc
	}
	return Desc
}
