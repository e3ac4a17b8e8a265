package qr

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrRenderFailure генерация QR-изображения не удалась
var ErrRenderFailure = errors.New("failed to render qr code")

// PNGRenderer рендерит QR-код в PNG. Чистая функция без побочных
// эффектов: изображение генерируется один раз при создании ссылки.
type PNGRenderer struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewPNGRenderer создаёт рендерер с высоким уровнем коррекции ошибок
func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{
		size:  256,
		level: qrcode.High,
	}
}

// Render кодирует текст в PNG-изображение QR-кода
func (r *PNGRenderer) Render(text string) ([]byte, error) {
	png, err := qrcode.Encode(text, r.level, r.size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}
	return png, nil
}
