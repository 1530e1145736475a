package dmarc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

const testdata = "../../testdata"

type zipEntry struct {
	name    string
	content []byte
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(testdata, name))
	require.NoError(t, err)
	return b
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, content, 0o600))
	return p
}

func gzipContent(t *testing.T, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(content)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func zipContent(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// fixtureAs writes the named fixture to a temp dir as plain, gzip or zip
// file and returns the path
func fixtureAs(t *testing.T, name, kind string) string {
	t.Helper()
	content := fixture(t, name)
	switch kind {
	case "xml":
		return writeFile(t, name, content)
	case "gz":
		return writeFile(t, name+".gz", gzipContent(t, content))
	case "zip":
		return writeFile(t, name+".zip", zipContent(t, zipEntry{name: name, content: content}))
	default:
		t.Fatalf("unknown kind %s", kind)
		return ""
	}
}

const reportTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<feedback>
  <report_metadata>
    <org_name>example.net</org_name>
    <email>dmarc@example.net</email>
    <report_id>42</report_id>
    <date_range>
      <begin>0</begin>
      <end>86399</end>
    </date_range>
  </report_metadata>
  <policy_published>
    <domain>example.com</domain>
%s
  </policy_published>
%s
</feedback>`

func buildReport(policy string, records ...string) string {
	var b bytes.Buffer
	for _, r := range records {
		b.WriteString(r)
	}
	return fmt.Sprintf(reportTemplate, policy, b.String())
}

func buildRecord(ip string, count int, dkim, spf string, authResults string) string {
	return fmt.Sprintf(`  <record>
    <row>
      <source_ip>%s</source_ip>
      <count>%d</count>
      <policy_evaluated>
        <disposition>none</disposition>
        <dkim>%s</dkim>
        <spf>%s</spf>
      </policy_evaluated>
    </row>
    <identifiers>
      <header_from>example.com</header_from>
    </identifiers>
    <auth_results>
%s
    </auth_results>
  </record>
`, ip, count, dkim, spf, authResults)
}
