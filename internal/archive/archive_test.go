package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spboyer/perfrun/internal/logfiles"
)

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(zr)

	files := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = string(body)
	}
	return files
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, logfiles.Times), []byte("started: x\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, logfiles.Stdout), []byte("hello\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("skip"), 0o644))

	var buf bytes.Buffer
	added, err := Create(dir, &buf)
	require.NoError(t, err)
	assert.Equal(t, []string{logfiles.Times, logfiles.Stdout}, added)

	files := readArchive(t, buf.Bytes())
	assert.Equal(t, map[string]string{
		logfiles.Times:  "started: x\n",
		logfiles.Stdout: "hello\n",
	}, files)
}

func TestCreate_NoLogs(t *testing.T) {
	var buf bytes.Buffer
	_, err := Create(t.TempDir(), &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no log files")
}

func TestCreateFile_RemovesPartialOnError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "logs.tar.gz")
	_, err := CreateFile(t.TempDir(), out)
	require.Error(t, err)
	assert.NoFileExists(t, out)
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		container string
		prefix    string
		sas       bool
		wantErr   bool
	}{
		{
			name:      "plain container",
			url:       "https://acct.blob.core.windows.net/runs",
			container: "runs",
		},
		{
			name:      "with prefix",
			url:       "https://acct.blob.core.windows.net/runs/2018/dinsdale",
			container: "runs",
			prefix:    "2018/dinsdale/",
		},
		{
			name:      "with sas",
			url:       "https://acct.blob.core.windows.net/runs?sv=2021-08-06&sp=cw&sig=abc%3D",
			container: "runs",
			sas:       true,
		},
		{
			name:    "no container",
			url:     "https://acct.blob.core.windows.net/",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDestination(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.container, d.Container)
			assert.Equal(t, tt.prefix, d.Prefix)
			assert.Equal(t, tt.sas, d.HasSAS)
			assert.Contains(t, d.ServiceURL, "https://acct.blob.core.windows.net")
			assert.NotContains(t, d.ServiceURL, "/runs")
			if tt.sas {
				assert.Contains(t, d.ServiceURL, "sig=")
			}
		})
	}
}

func TestDestination_BlobName(t *testing.T) {
	d := &Destination{Prefix: "a/b/"}
	assert.Equal(t, "a/b/logs.tar.gz", d.BlobName("logs.tar.gz"))
}
