package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP unpacks every regular file in the archive under destDir, keeping
// relative paths, and returns the written paths in archive order. An entry
// that would land outside destDir aborts the extraction.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open %s", filepath.Base(zipPath))
	}
	defer zr.Close() //nolint:errcheck

	written := make([]string, 0, len(zr.File))
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if !filepath.IsLocal(entry.Name) {
			return written, eris.Errorf("zip: entry %q escapes the extract directory", entry.Name)
		}
		dst := filepath.Join(destDir, filepath.FromSlash(entry.Name))
		if err := unpackEntry(entry, dst); err != nil {
			return written, err
		}
		written = append(written, dst)
	}
	return written, nil
}

// FindExt returns the first path whose extension matches ext, ignoring case.
func FindExt(paths []string, ext string) (string, bool) {
	for _, p := range paths {
		if strings.EqualFold(filepath.Ext(p), ext) {
			return p, true
		}
	}
	return "", false
}

func unpackEntry(entry *zip.File, dst string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return eris.Wrapf(err, "zip: mkdir for %s", entry.Name)
	}

	src, err := entry.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open entry %s", entry.Name)
	}
	defer src.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return eris.Wrapf(err, "zip: create %s", dst)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "zip: close %s", dst)
		}
	}()

	if _, err := io.Copy(out, src); err != nil {
		return eris.Wrapf(err, "zip: copy %s", entry.Name)
	}
	return nil
}
