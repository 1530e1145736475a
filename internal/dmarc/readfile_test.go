package dmarc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	t.Parallel()

	want := string(fixture(t, "dmarc-sample-1.xml"))
	for _, kind := range []string{"xml", "gz", "zip"} {
		t.Run(kind, func(t *testing.T) {
			t.Parallel()
			content, err := ReadFile(fixtureAs(t, "dmarc-sample-1.xml", kind))
			require.NoError(t, err)
			assert.Equal(t, want, content)
		})
	}
}

func TestReadFileUppercaseExtension(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "REPORT.XML", fixture(t, "dmarc-sample-2.xml"))
	content, err := ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, content, "example.org")
}

func TestReadFileUnsupportedType(t *testing.T) {
	t.Parallel()

	// the file does not exist, the extension is checked first
	_, err := ReadFile(filepath.Join(t.TempDir(), "report.txt"))
	var unsupported *UnsupportedFileTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ".txt", unsupported.Extension)

	_, err = ReadFile(filepath.Join(t.TempDir(), "report"))
	require.ErrorAs(t, err, &unsupported)
	assert.Empty(t, unsupported.Extension)
}

func TestReadFileMissing(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "missing.xml")
	_, err := ReadFile(p)
	var readFailure *ReadFailureError
	require.ErrorAs(t, err, &readFailure)
	assert.Equal(t, p, readFailure.Path)
	assert.Error(t, readFailure.Unwrap())
}

func TestReadFileZIPFirstXMLEntry(t *testing.T) {
	t.Parallel()

	sample := fixture(t, "dmarc-sample-1.xml")
	p := writeFile(t, "report.zip", zipContent(t,
		zipEntry{name: "README.txt", content: []byte("not a report")},
		zipEntry{name: "reports/", content: nil},
		zipEntry{name: "report.XML", content: sample},
		zipEntry{name: "second.xml", content: []byte("<feedback/>")},
	))

	content, err := ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, string(sample), content)
}

func TestReadFileZIPWithoutXML(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "report.zip", zipContent(t,
		zipEntry{name: "README.txt", content: []byte("not a report")},
	))

	_, err := ReadFile(p)
	var noXML *NoXMLInArchiveError
	require.ErrorAs(t, err, &noXML)
	assert.Equal(t, p, noXML.Path)
}

func TestReadFileBrokenArchives(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content []byte
	}{
		{"report.xml.gz", []byte("this is not gzip")},
		{"report.zip", []byte("this is not a zip file")},
		{"report.xml", []byte{0x3c, 0x66, 0xff, 0xfe, 0x3e}},
		{"report.xml.gz", gzipContent(t, []byte{0xc3, 0x28})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadFile(writeFile(t, tt.name, tt.content))
			var readFailure *ReadFailureError
			require.ErrorAs(t, err, &readFailure)
		})
	}
}

func TestReadContentStripsBOM(t *testing.T) {
	t.Parallel()

	content, err := ReadContent("report.xml", append([]byte{0xEF, 0xBB, 0xBF}, []byte("<feedback/>")...))
	require.NoError(t, err)
	assert.Equal(t, "<feedback/>", content)
}
