package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinPasswordLength       = 8
	MaxPasswordLength       = 128
	MinFullNameLength       = 2
	MaxFullNameLength       = 100
	MinProjectNameLength    = 3
	MaxProjectNameLength    = 200
	MaxDescriptionLength    = 5000
	MinMessageLength        = 1
	MaxMessageLength        = 5000
	MinTicketTitleLength    = 3
	MaxTicketTitleLength    = 200
	MinPrice                = 0.01
	MaxPrice                = 100000000.0 // 100 миллионов
	MaxStagesPerProject     = 20
	MaxNegotiationMsgLength = 2000
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	localRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !localRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidatePassword проверяет требования к паролю.
func ValidatePassword(password string) error {
	if err := ValidateLength("пароль", password, MinPasswordLength, MaxPasswordLength); err != nil {
		return err
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("пароль должен содержать хотя бы одну букву и одну цифру")
	}

	return nil
}

// ValidatePrice проверяет цену проекта или предложения.
func ValidatePrice(fieldName string, price float64) error {
	if price < MinPrice {
		return fmt.Errorf("%s должна быть положительной", fieldName)
	}
	if price > MaxPrice {
		return fmt.Errorf("%s превышает допустимый максимум", fieldName)
	}
	return nil
}

// ValidatePhoneE164 проверяет номер телефона в формате E.164
// (для WhatsApp уведомлений).
func ValidatePhoneE164(phone string) error {
	phoneRegex := regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("номер телефона должен быть в формате E.164, например +5491112345678")
	}
	return nil
}

// ValidateProgress проверяет значение прогресса или порога разблокировки.
func ValidateProgress(fieldName string, value int) error {
	if value < 0 || value > 100 {
		return fmt.Errorf("%s должен быть в диапазоне от 0 до 100", fieldName)
	}
	return nil
}
