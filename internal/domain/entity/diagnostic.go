package entity

import (
	"encoding/base64"
	"errors"
	"strings"
)

var ErrRemoteImage = errors.New("diagnostic image is a remote url")

// DecodeDiagnostic разбирает диагностическое изображение: data URL или голый base64.
// Для http(s) ссылки возвращает ErrRemoteImage.
func DecodeDiagnostic(s string) (mime string, data []byte, err error) {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return "", nil, ErrRemoteImage
	}

	mime = "image/jpeg"
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return "", nil, errors.New("malformed data url")
		}
		m, isBase64 := strings.CutSuffix(meta, ";base64")
		if !isBase64 {
			return "", nil, errors.New("data url is not base64")
		}
		if m != "" {
			mime = m
		}
		s = payload
	}

	data, err = base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", nil, err
	}
	return mime, data, nil
}
