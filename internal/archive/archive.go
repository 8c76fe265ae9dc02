// Package archive bundles the logs of a run into a tar.gz stream and
// optionally uploads it to Azure Blob Storage.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/spboyer/perfrun/internal/logfiles"
)

// Create writes the log files present in dir to w as a gzip-compressed tar
// archive and returns the names it added. Files are stored by base name.
// It is an error for dir to contain none of the logs.
func Create(dir string, w io.Writer) ([]string, error) {
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(zw)

	var added []string
	for _, name := range logfiles.Names {
		ok, err := addFile(tw, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if ok {
			added = append(added, name)
		}
	}
	if len(added) == 0 {
		return nil, fmt.Errorf("%s: no log files to archive", dir)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("closing tar stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip stream: %w", err)
	}
	return added, nil
}

// CreateFile writes the archive of dir to path.
func CreateFile(dir, path string) ([]string, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	added, err := Create(dir, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return added, nil
}

func addFile(tw *tar.Writer, path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return false, err
	}
	hdr.Name = filepath.Base(path)

	if err := tw.WriteHeader(hdr); err != nil {
		return false, fmt.Errorf("writing header for %s: %w", hdr.Name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return false, fmt.Errorf("writing %s: %w", hdr.Name, err)
	}
	return true, nil
}
