// Package flow содержит статическую обработку структуры flow:
// валидацию (перед сохранением) и нормализацию (перед выполнением).
//
// Валидатор и нормализатор намеренно разделены: валидатор отклоняет
// некорректные структуры на записи, нормализатор чинит недостающие
// поля легаси-данных на чтении. Нормализация во время выполнения может
// маскировать ошибки авторинга, поэтому engine после неё повторно
// проверяет обязательные поля и падает на повреждённых узлах.
package flow
