package entity

// EncodedFrame сжатый кадр, готовый к отправке в сервис детекции.
type EncodedFrame struct {
	Data     []byte // байты изображения
	MimeType string // например image/jpeg
	Width    int    // ширина после масштабирования
	Height   int    // высота после масштабирования
}

// Empty сообщает, что кадр не содержит данных.
func (f *EncodedFrame) Empty() bool {
	return f == nil || len(f.Data) == 0
}
