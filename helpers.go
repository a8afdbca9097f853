package fakecheck

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// EncodeBase64 encodes bytes to base64 string.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// EncodeDataURL creates a data: URI from bytes and MIME type.
func EncodeDataURL(data []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, EncodeBase64(data))
}

var errDataURL = errors.New("not a base64 data URL")

// DecodeDataURL is the inverse of EncodeDataURL. Only base64 payloads are accepted.
func DecodeDataURL(s string) (data []byte, mimeType string, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", errDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errDataURL
	}
	mimeType, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, "", errDataURL
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errDataURL, err)
	}
	return data, mimeType, nil
}
