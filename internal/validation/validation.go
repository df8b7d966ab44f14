// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"strings"
	"unicode"
)

const (
	minCouponCode     = 3
	maxCouponCode     = 32
	maxTrackingNumber = 64
	minPassword       = 8
)

// NormalizeEmail приводит адрес к нижнему регистру и убирает пробелы по краям.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail проверяет, что строка является одиночным адресом без отображаемого имени.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && addr.Name == ""
}

// IsValidPassword проверяет минимальную длину пароля.
func IsValidPassword(password string) bool {
	return len([]rune(password)) >= minPassword
}

// NormalizeCouponCode приводит код купона к каноническому виду.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCouponCode проверяет нормализованный код купона: латиница, цифры, '-' и '_'.
func IsValidCouponCode(code string) bool {
	if len(code) < minCouponCode || len(code) > maxCouponCode {
		return false
	}
	for _, ch := range code {
		switch {
		case ch >= 'A' && ch <= 'Z', unicode.IsDigit(ch), ch == '-', ch == '_':
		default:
			return false
		}
	}
	return true
}

// IsValidTrackingNumber проверяет трек-номер перед поиском заказа.
func IsValidTrackingNumber(number string) bool {
	if number == "" || len(number) > maxTrackingNumber {
		return false
	}
	for _, ch := range number {
		if ch > unicode.MaxASCII || !(unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '-') {
			return false
		}
	}
	return true
}

// IsValidQuantity проверяет количество товара в позиции.
func IsValidQuantity(qty int) bool {
	return qty > 0 && qty <= 99
}
