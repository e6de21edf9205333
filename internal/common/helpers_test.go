package common_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vpnshop.ru/telegram-bot/internal/common"
)

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		kopecks int64
		want    string
	}{
		{0, "0 ₽"},
		{15000, "150 ₽"},
		{15050, "150.50 ₽"},
		{15005, "150.05 ₽"},
		{99, "0.99 ₽"},
		{-15000, "-150 ₽"},
		{-15050, "-150.50 ₽"},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, common.FormatMoney(c.kopecks), "kopecks=%d", c.kopecks)
	}
}

func TestRublesKopecksConversion(t *testing.T) {
	assert.Equal(t, int64(50000), common.RublesToKopecks(500))
	assert.Equal(t, int64(500), common.KopecksToRubles(50000))
	assert.Equal(t, int64(150), common.KopecksToRubles(15099), "копейки отбрасываются")
}

func TestPluralizeKeys(t *testing.T) {
	cases := []struct {
		n    int64
		want string
	}{
		{1, "ключ"},
		{2, "ключа"},
		{4, "ключа"},
		{5, "ключей"},
		{11, "ключей"},
		{12, "ключей"},
		{21, "ключ"},
		{22, "ключа"},
		{100, "ключей"},
		{101, "ключ"},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, common.PluralizeKeys(c.n), "n=%d", c.n)
	}
}

func TestPluralizeDays(t *testing.T) {
	assert.Equal(t, "день", common.PluralizeDays(1))
	assert.Equal(t, "дня", common.PluralizeDays(3))
	assert.Equal(t, "дней", common.PluralizeDays(30))
	assert.Equal(t, "дней", common.PluralizeDays(11))
}
