package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArchiveExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content []byte
		want    string
	}{
		{"gzip", []byte{0x1f, 0x8b, 0x08, 0x00}, ".gz"},
		{"zip", []byte("PK\x03\x04rest"), ".zip"},
		{"empty zip", []byte("PK\x05\x06"), ".zip"},
		{"xml", []byte("<?xml version=\"1.0\"?>"), ""},
		{"short", []byte{0x1f}, ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ArchiveExtension(tt.content))
			assert.Equal(t, tt.want != "", IsSupportedArchive(tt.content))
		})
	}
}
