// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование денежных сумм (копейки → рубли),
// русская плюрализация и работа с временем.
package common

import (
	"fmt"
	"math"
	"time"
)

// Все денежные суммы в системе хранятся в копейках (целые числа).
// Наружу (в сообщения бота) показываем рубли.

// KopecksToRubles переводит копейки в целые рубли (копейки отбрасываются
// только при форматировании, в хранилище всегда точное значение).
func KopecksToRubles(kopecks int64) int64 {
	return kopecks / 100
}

// RublesToKopecks переводит рубли в копейки.
func RublesToKopecks(rubles int64) int64 {
	return rubles * 100
}

// FormatMoney форматирует сумму в копейках в строку вида "150 ₽" или "150.50 ₽".
//
// Примеры:
//
//	FormatMoney(15000) → "150 ₽"
//	FormatMoney(15050) → "150.50 ₽"
func FormatMoney(kopecks int64) string {
	sign := ""
	if kopecks < 0 {
		sign = "-"
		kopecks = -kopecks
	}
	if kopecks%100 == 0 {
		return fmt.Sprintf("%s%d ₽", sign, kopecks/100)
	}
	return fmt.Sprintf("%s%d.%02d ₽", sign, kopecks/100, kopecks%100)
}

// PluralizeKeys возвращает правильную форму слова «ключ» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "ключ" (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → "ключа" (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → "ключей" (0, 5-20, 25-30, 100, ...)
func PluralizeKeys(n int64) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "ключ"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "ключа"
	}
	return "ключей"
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
func PluralizeDays(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "день"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "дня"
	}
	return "дней"
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" по Москве.
// Используется для отображения дат покупок и платежей.
func FormatDateTime(t time.Time) string {
	return t.In(MoscowLocation()).Format("02.01.2006 15:04")
}

// FormatDate форматирует только дату: "02.01.2006".
func FormatDate(t time.Time) string {
	return t.In(MoscowLocation()).Format("02.01.2006")
}

// MoscowLocation возвращает часовой пояс Москвы.
// Если tzdata недоступна — фиксированный UTC+3.
func MoscowLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}
