package helper

import (
	"bytes"
)

type signature struct {
	magic []byte
	ext   string
}

// https://en.wikipedia.org/wiki/List_of_file_signatures
var magicTable = []signature{
	{[]byte{31, 139}, ".gz"},       // "\x1f\x8b"
	{[]byte{80, 75, 3, 4}, ".zip"}, // "\x50\x4B\x03\x04"
	{[]byte{80, 75, 5, 6}, ".zip"}, // "\x50\x4B\x05\x06"
	{[]byte{80, 75, 7, 8}, ".zip"}, // "\x50\x4B\x07\x08"
}

// ArchiveExtension returns .gz or .zip if content starts with the matching
// magic bytes and an empty string otherwise
func ArchiveExtension(content []byte) string {
	for _, sig := range magicTable {
		if bytes.HasPrefix(content, sig.magic) {
			return sig.ext
		}
	}
	return ""
}

func IsSupportedArchive(content []byte) bool {
	return ArchiveExtension(content) != ""
}
