package apperr

import "fmt"

// ExtractionError ошибка чтения исходного файла выгрузки:
// файл не открывается, не содержит таблиц или выбранная таблица пуста
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ошибка чтения файла: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ошибка чтения файла: %s", e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// SchemaError в выгрузке отсутствует обязательная колонка
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("колонка '%s' не найдена в файле", e.Field)
}

// StoreError ошибка ввода-вывода или нарушение целостности хранилища,
// не относящееся к ожидаемой дедупликации
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("ошибка хранилища (%s): %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// InvalidSnapshotError некорректный архив резервной копии
type InvalidSnapshotError struct {
	Reason string
}

func (e *InvalidSnapshotError) Error() string {
	return fmt.Sprintf("некорректный файл резервной копии: %s", e.Reason)
}

// BackupError ошибка при создании резервной копии
type BackupError struct {
	Err error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("ошибка создания резервной копии: %v", e.Err)
}

func (e *BackupError) Unwrap() error {
	return e.Err
}
