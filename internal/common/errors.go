// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки покупки ключа
var (
	// ErrInsufficientFunds — на балансе не хватает средств для покупки
	ErrInsufficientFunds = errors.New("недостаточно средств на балансе")
	// ErrNoInventory — доступных ключей нужного типа не осталось
	ErrNoInventory = errors.New("нет доступных ключей")
	// ErrActiveKeyExists — у пользователя уже есть действующий ключ
	ErrActiveKeyExists = errors.New("у вас уже есть активный ключ")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки тестового ключа
var (
	// ErrTrialAlreadyUsed — тестовый ключ уже выдавался этому пользователю
	ErrTrialAlreadyUsed = errors.New("тестовый ключ уже был получен")
	// ErrTrialBlocked — тестовый ключ недоступен тем, кто покупал платный
	ErrTrialBlocked = errors.New("тестовый ключ недоступен после покупки платного ключа")
)

// Ошибки платежей
var (
	// ErrInvalidSignature — подпись вебхука не сошлась с расчётной
	ErrInvalidSignature = errors.New("неверная подпись уведомления")
	// ErrUnknownReference — платёж с таким ID провайдера нам неизвестен
	ErrUnknownReference = errors.New("платёж не найден")
	// ErrAmountOutOfRange — сумма пополнения вне допустимого диапазона
	ErrAmountOutOfRange = errors.New("сумма пополнения вне допустимого диапазона")
)

// Ошибки хранилища
var (
	// ErrStoreTimeout — операция с БД не уложилась в таймаут.
	// Покупку после этого можно повторять только целиком, не отдельные шаги.
	ErrStoreTimeout = errors.New("превышено время ожидания базы данных")
	// ErrStoreConflict — конкурентное обновление проиграло гонку, безопасно повторить один раз
	ErrStoreConflict = errors.New("конфликт конкурентного обновления")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)
