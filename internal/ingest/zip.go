package ingest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// extractZIPTable extracts the single tabular file (.csv or .xlsx) from a ZIP
// archive into destDir and returns its path. Archives with zero or multiple
// tabular entries are rejected.
func extractZIPTable(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	var table *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".csv", ".xlsx":
			if table != nil {
				return "", eris.Errorf("zip: archive contains more than one tabular file")
			}
			table = f
		}
	}
	if table == nil {
		return "", eris.New("zip: no csv or xlsx entry in archive")
	}

	return extractZIPEntry(table, destDir)
}

func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	// Reject entries that would escape destDir.
	name := filepath.Base(f.Name)
	if name == "." || name == string(filepath.Separator) {
		return "", eris.Errorf("zip: invalid entry name %q", f.Name)
	}
	dest := filepath.Join(destDir, name)

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "zip: create output file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrapf(err, "zip: extract %s", f.Name)
	}

	return dest, nil
}
