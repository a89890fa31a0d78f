// Package jsonv содержит типизированное представление JSON-значений.
//
// Шаги и ответы workflow имеют произвольную форму (null, bool, number,
// string, array, object), поэтому вместо any используется tagged union
// Value. Это делает обход по dot-path и шаблонизацию типобезопасными.
//
// Включает:
//   - value.go  — Value, Kind, конструкторы и доступ к данным
//   - object.go — Object с сохранением порядка ключей
//   - codec.go  — JSON encode/decode с сохранением порядка ключей
//   - yaml.go   — конвертация yaml.Node в Value
//
// Порядок ключей в объектах — часть наблюдаемого результата,
// поэтому Object хранит ключи в порядке первой вставки.
package jsonv
