package shortcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// URL-safe алфавит коротких кодов (как у nanoid)
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// DefaultLength длина короткого кода по умолчанию
const DefaultLength = 6

// Generator генерирует криптографически случайные короткие коды.
// Хранилище не опрашивается: уникальность обеспечивает вызывающая
// сторона повторной генерацией при конфликте вставки.
type Generator struct {
	length int
}

// New создаёт генератор с длиной кода по умолчанию
func New() *Generator {
	return &Generator{length: DefaultLength}
}

// NewWithLength создаёт генератор с заданной длиной кода
func NewWithLength(length int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	return &Generator{length: length}
}

// Generate возвращает новый случайный короткий код
func (g *Generator) Generate() (string, error) {
	result := make([]byte, g.length)
	for i := 0; i < g.length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate short code: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}
	return string(result), nil
}
