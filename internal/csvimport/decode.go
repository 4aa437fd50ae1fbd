package csvimport

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode turns raw export bytes into text. UTF-8 (with or without a byte
// order mark) is tried first, then Windows-1252.
func Decode(data []byte) (string, error) {
	if trimmed := bytes.TrimPrefix(data, utf8BOM); utf8.Valid(trimmed) {
		return string(trimmed), nil
	}

	text, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", &ImportError{Reason: "unable to decode file as utf-8 or windows-1252", Err: err}
	}
	// Bytes undefined in Windows-1252 decode to U+FFFD.
	if strings.ContainsRune(string(text), utf8.RuneError) {
		return "", &ImportError{Reason: "unable to decode file as utf-8 or windows-1252"}
	}
	return string(text), nil
}
