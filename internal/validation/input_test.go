package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{
		"cliente@softwarepar.lat",
		"maria.gonzalez+proyectos@gmail.com",
		"ADMIN@SoftwarePar.LAT",
	}
	for _, email := range valid {
		assert.NoError(t, ValidateEmail(email), email)
	}

	invalid := []string{
		"",
		"sin-arroba.com",
		"dos@@softwarepar.lat",
		"espacio en@dominio.com",
		"cliente@sin-punto",
		"cliente@" + strings.Repeat("a", 256) + ".com",
	}
	for _, email := range invalid {
		assert.Error(t, ValidateEmail(email), email)
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("segura123"))
	assert.NoError(t, ValidatePassword("Abcdefg9"))

	// Короткий, без цифр, без букв.
	assert.Error(t, ValidatePassword("ab1"))
	assert.Error(t, ValidatePassword("solopalabras"))
	assert.Error(t, ValidatePassword("12345678"))
	assert.Error(t, ValidatePassword(strings.Repeat("a1", 65)))
}

func TestValidatePrice(t *testing.T) {
	assert.NoError(t, ValidatePrice("цена", 0.01))
	assert.NoError(t, ValidatePrice("цена", 1500))
	assert.NoError(t, ValidatePrice("цена", MaxPrice))

	assert.Error(t, ValidatePrice("цена", 0))
	assert.Error(t, ValidatePrice("цена", -10))
	assert.Error(t, ValidatePrice("цена", MaxPrice+1))
}

func TestValidatePhoneE164(t *testing.T) {
	assert.NoError(t, ValidatePhoneE164("+595981234567"))
	assert.NoError(t, ValidatePhoneE164("+5491112345678"))

	assert.Error(t, ValidatePhoneE164("0981234567"))
	assert.Error(t, ValidatePhoneE164("+0595981234567"))
	assert.Error(t, ValidatePhoneE164("+595 981 234 567"))
	assert.Error(t, ValidatePhoneE164("+12345"))
}

func TestValidateProgress(t *testing.T) {
	assert.NoError(t, ValidateProgress("прогресс", 0))
	assert.NoError(t, ValidateProgress("прогресс", 100))

	assert.Error(t, ValidateProgress("прогресс", -1))
	assert.Error(t, ValidateProgress("прогресс", 101))
}

func TestValidateLength_CountsRunes(t *testing.T) {
	// Кириллица и испанские диакритики считаются посимвольно.
	assert.NoError(t, ValidateLength("название", "añadí", 5, 5))
	assert.Error(t, ValidateLength("название", "ab", 3, 10))
	assert.Error(t, ValidateLength("название", strings.Repeat("x", 11), 3, 10))
}

func TestValidateNonEmpty(t *testing.T) {
	assert.NoError(t, ValidateNonEmpty("поле", "texto"))
	assert.Error(t, ValidateNonEmpty("поле", ""))
	assert.Error(t, ValidateNonEmpty("поле", "   "))
}
