// Package payments — signature.go проверяет подлинность вебхуков Nicepay.
//
// Протокол провайдера: значения всех полей уведомления, отсортированных
// по имени поля, плюс секретный ключ в конце, соединяются разделителем
// "{np}", и от строки берётся SHA-256. Полученный hex сравнивается
// с полем hash уведомления.
package payments

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// Имя поля с подписью; в расчёт дайджеста не входит.
const signatureField = "hash"

// Разделитель полей в строке для дайджеста.
const digestSeparator = "{np}"

// Digest вычисляет подпись над полями уведомления (без поля hash).
func Digest(params map[string]string, secretKey string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		if name == signatureField {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]string, 0, len(names)+1)
	for _, name := range names {
		values = append(values, params[name])
	}
	values = append(values, secretKey)

	sum := sha256.Sum256([]byte(strings.Join(values, digestSeparator)))
	return hex.EncodeToString(sum[:])
}

// VerifySignature сверяет поле hash уведомления с расчётным дайджестом.
// Сравнение за постоянное время, чтобы не подсказывать подбор.
func VerifySignature(params map[string]string, secretKey string) bool {
	received, ok := params[signatureField]
	if !ok || received == "" {
		return false
	}
	expected := Digest(params, secretKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
