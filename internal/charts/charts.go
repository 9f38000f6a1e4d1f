// Package charts serves the static dashboard chart images. Charts are
// pre-rendered files dropped into a directory; the gallery lists them,
// derives display titles from their filenames, and caches data URI
// thumbnails so repeated page loads do not reread the files.
package charts

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	gocache "github.com/patrickmn/go-cache"

	"github.com/baseera/baseera-go/internal/conf"
	"github.com/baseera/baseera-go/internal/errors"
	"github.com/baseera/baseera-go/internal/logging"
)

var chartExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".svg":  true,
}

// Chart is one gallery entry.
type Chart struct {
	Name  string `json:"name"`  // filename without extension
	Title string `json:"title"` // human readable, derived from the filename
	File  string `json:"file"`  // filename including extension
}

// Gallery lists and serves the chart images in a single directory. The
// directory is watched so externally regenerated charts appear without a
// restart.
type Gallery struct {
	dir     string
	cache   *gocache.Cache
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// New opens a gallery over the configured charts directory. A missing
// directory is not an error, the gallery is just empty until charts appear.
func New(settings *conf.Settings) (*Gallery, error) {
	g := &Gallery{
		dir:    settings.Dashboard.ChartsDir,
		cache:  gocache.New(1*time.Hour, 10*time.Minute),
		logger: logging.ForService("charts"),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err).
			Category(errors.CategoryFileIO).
			Context("charts_dir", g.dir).
			Build()
	}
	g.watcher = watcher

	if err := watcher.Add(g.dir); err != nil {
		// Watch what we can; the directory may not exist yet.
		g.logger.Warn("Charts directory not watchable", "dir", g.dir, "error", err)
	}
	go g.watch()

	return g, nil
}

// Charts returns the gallery entries sorted by filename.
func (g *Gallery) Charts() []Chart {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			g.logger.Warn("Failed to read charts directory", "dir", g.dir, "error", err)
		}
		return []Chart{}
	}

	charts := make([]Chart, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !chartExtensions[ext] {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		charts = append(charts, Chart{
			Name:  name,
			Title: titleFromName(name),
			File:  entry.Name(),
		})
	}
	sort.Slice(charts, func(i, j int) bool { return charts[i].File < charts[j].File })
	return charts
}

// DataURI returns the chart image as a base64 data URI, served from cache
// when possible. The name is a bare filename; path traversal is rejected.
func (g *Gallery) DataURI(file string) (string, error) {
	if file != filepath.Base(file) || file == "." || file == "" {
		return "", errors.Newf("invalid chart name: %q", file).
			Category(errors.CategoryValidation).
			Build()
	}

	if cached, ok := g.cache.Get(file); ok {
		return cached.(string), nil
	}

	data, err := os.ReadFile(filepath.Join(g.dir, file))
	if err != nil {
		return "", errors.Wrap(err).
			Category(errors.CategoryFileIO).
			Context("chart", file).
			Build()
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(file)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	uri := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	g.cache.SetDefault(file, uri)
	return uri, nil
}

// Close stops the directory watcher.
func (g *Gallery) Close() error {
	if g.watcher != nil {
		return g.watcher.Close()
	}
	return nil
}

// watch drops cache entries for charts that change on disk.
func (g *Gallery) watch() {
	for {
		select {
		case event, ok := <-g.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				name := filepath.Base(event.Name)
				g.cache.Delete(name)
				g.logger.Debug("Chart changed, cache entry dropped", "chart", name, "op", event.Op.String())
			}
		case err, ok := <-g.watcher.Errors:
			if !ok {
				return
			}
			g.logger.Warn("Charts watcher error", "error", err)
		}
	}
}

// titleFromName turns "weekly_waste_trend" into "Weekly Waste Trend".
func titleFromName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
