package extractor

import (
	"strings"

	"byd-analyzer-go/internal/apperr"
)

// tablePriorities предикаты выбора рабочей таблицы в порядке приоритета.
// Выгрузки телематики именуют таблицу с поездками по-разному,
// но в имени всегда встречается одно из этих слов
var tablePriorities = []func(name string) bool{
	func(name string) bool { return strings.Contains(name, "consumption") },
	func(name string) bool { return strings.Contains(name, "energy") },
}

// SelectTable выбирает рабочую таблицу из списка имен таблиц выгрузки.
// Первый предикат, нашедший совпадение, побеждает; если ни один не сработал,
// берется первая объявленная таблица. Чистая функция, порядок имен сохраняется
func SelectTable(names []string) (string, error) {
	if len(names) == 0 {
		return "", &apperr.ExtractionError{Reason: "в файле нет таблиц"}
	}

	for _, match := range tablePriorities {
		for _, name := range names {
			if match(strings.ToLower(name)) {
				return name, nil
			}
		}
	}

	return names[0], nil
}
