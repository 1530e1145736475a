package dmarc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readGZ(content []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("could not gzip read: %w", err)
	}
	defer gz.Close()

	xmlContent, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("could not read: %w", err)
	}
	return xmlContent, nil
}

// readZIP returns the first entry whose name ends in .xml, in archive order
func readZIP(filename string, content []byte) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("could not open zip: %w", err)
	}
	for _, f := range r.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".xml") {
			continue
		}
		return readZIPEntry(f)
	}
	return nil, &NoXMLInArchiveError{Path: filename}
}

func readZIPEntry(f *zip.File) ([]byte, error) {
	x, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("could not open file %s inside zip: %w", f.Name, err)
	}
	defer x.Close()

	xmlContent, err := io.ReadAll(x)
	if err != nil {
		return nil, fmt.Errorf("could not read file %s inside zip: %w", f.Name, err)
	}
	return xmlContent, nil
}

func checkExtension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".xml", ".gz", ".zip":
		return ext, nil
	default:
		return "", &UnsupportedFileTypeError{Extension: filepath.Ext(filename)}
	}
}

// ReadFile returns the XML document contained in a .xml, .xml.gz or .zip
// report file. The extension is checked before the file is opened.
func ReadFile(filename string) (string, error) {
	if _, err := checkExtension(filename); err != nil {
		return "", err
	}
	content, err := os.ReadFile(filename) // nolint: gosec
	if err != nil {
		return "", &ReadFailureError{Path: filename, Cause: err}
	}
	return ReadContent(filename, content)
}

// ReadContent is like ReadFile but works on an already loaded file, for
// example an email attachment. filename is only used for the extension
// and in errors.
func ReadContent(filename string, content []byte) (string, error) {
	ext, err := checkExtension(filename)
	if err != nil {
		return "", err
	}

	var xmlContent []byte
	switch ext {
	case ".xml":
		xmlContent = content
	case ".gz":
		xmlContent, err = readGZ(content)
	case ".zip":
		xmlContent, err = readZIP(filename, content)
	}
	if err != nil {
		var noXML *NoXMLInArchiveError
		if errors.As(err, &noXML) {
			return "", err
		}
		return "", &ReadFailureError{Path: filename, Cause: err}
	}

	xmlContent = bytes.TrimPrefix(xmlContent, utf8BOM)
	if !utf8.Valid(xmlContent) {
		return "", &ReadFailureError{Path: filename, Cause: errors.New("content is not valid UTF-8")}
	}
	return string(xmlContent), nil
}
