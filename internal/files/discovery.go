// Package files discovers sensor export files on disk for batch processing.
package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Export is one discovered sensor export file.
type Export struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// exportExtensions are the file types the pipeline can ingest.
var exportExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
}

// Discovery scans directories for sensor exports.
type Discovery struct {
	logger *slog.Logger
}

// NewDiscovery creates a discovery scanner.
func NewDiscovery(logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{logger: logger}
}

// ListExports returns the ingestable files in dir, newest first. Excel lock
// files ("~$...") and dotfiles are skipped.
func (d *Discovery) ListExports(dir string) ([]Export, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var exports []Export
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if !exportExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			d.logger.Warn("Skipping unreadable file",
				slog.String("name", name),
				slog.String("error", err.Error()))
			continue
		}
		exports = append(exports, Export{
			Path:    filepath.Join(dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(exports, func(i, j int) bool {
		return exports[i].ModTime.After(exports[j].ModTime)
	})

	d.logger.Debug("Exports discovered",
		slog.String("dir", dir),
		slog.Int("count", len(exports)))
	return exports, nil
}

// LatestExport returns the most recently modified export in dir.
func (d *Discovery) LatestExport(dir string) (Export, error) {
	exports, err := d.ListExports(dir)
	if err != nil {
		return Export{}, err
	}
	if len(exports) == 0 {
		return Export{}, fmt.Errorf("no sensor exports found in %s", dir)
	}
	return exports[0], nil
}
