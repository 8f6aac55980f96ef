// Package tiger downloads the Census TIGER/Line ZCTA shapefile and converts
// its polygons into GeoJSON ZIP boundaries.
package tiger

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/college-map/internal/fetcher"
)

// Download fetches a TIGER/Line ZIP archive over http(s) or ftp into destDir
// and extracts it next to the archive, returning the .shp path. An archive
// already in destDir is reused; if it no longer opens it is fetched again.
func Download(ctx context.Context, f fetcher.Fetcher, rawURL, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "tiger.download"),
		zap.String("url", rawURL),
	)

	zipName, err := archiveName(rawURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "tiger: create dest dir")
	}
	zipPath := filepath.Join(destDir, zipName)
	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, filepath.Ext(zipName)))

	cached := false
	if info, statErr := os.Stat(zipPath); statErr == nil && info.Size() > 0 {
		cached = true
		log.Debug("reusing archive", zap.String("path", zipPath))
	} else if err := fetchArchive(ctx, f, rawURL, zipPath, log); err != nil {
		return "", err
	}

	extracted, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil && cached {
		log.Warn("cached archive is unreadable, downloading again", zap.Error(err))
		if err := fetchArchive(ctx, f, rawURL, zipPath, log); err != nil {
			return "", err
		}
		extracted, err = fetcher.ExtractZIP(zipPath, extractDir)
	}
	if err != nil {
		return "", eris.Wrap(err, "tiger: extract archive")
	}

	shpPath, ok := fetcher.FindExt(extracted, ".shp")
	if !ok {
		return "", eris.Errorf("tiger: no .shp file in %s", zipName)
	}
	return shpPath, nil
}

func fetchArchive(ctx context.Context, f fetcher.Fetcher, rawURL, zipPath string, log *zap.Logger) error {
	log.Info("downloading ZCTA shapefile")
	n, err := f.DownloadToFile(ctx, rawURL, zipPath)
	if err != nil {
		return eris.Wrap(err, "tiger: download shapefile")
	}
	log.Info("downloaded ZCTA shapefile", zap.Int64("bytes", n))
	return nil
}

// archiveName derives the local archive filename from the URL path.
func archiveName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrap(err, "tiger: parse url")
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", eris.Errorf("tiger: no archive name in %q", rawURL)
	}
	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return "", eris.Errorf("tiger: expected a .zip archive, got %q", name)
	}
	return name, nil
}
