package entity

// DetectionResult итог одного запроса к сервису детекции.
// Пустая строка в OverlayRef означает "оставить последний известный ассет".
type DetectionResult struct {
	Detected        bool   // найден ли целевой паттерн в кадре
	OverlayRef      string // ссылка на AR-ассет, только при Detected
	DiagnosticImage string // аннотированное изображение от сервиса, только для отображения
}

// NotDetected возвращает отрицательный результат. Им же заменяется любая ошибка транспорта.
func NotDetected() DetectionResult {
	return DetectionResult{}
}

// Overlay возвращает ссылку на ассет, если её можно использовать.
// При отрицательном результате ссылка игнорируется всегда.
func (r DetectionResult) Overlay() (string, bool) {
	if !r.Detected || r.OverlayRef == "" {
		return "", false
	}
	return r.OverlayRef, true
}
