package configfiles

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jebisys/switchboard/internal/types"
)

type LogFileInfo struct {
	Name     string    `json:"name"`
	SizeByte int64     `json:"size_bytes"`
	Modified time.Time `json:"modified"`
}

// LogBrowser exposes a single flat directory of log files by name. Names
// are validated before any path is built, so requests can never escape the
// directory.
type LogBrowser struct {
	dir string
}

func NewLogBrowser(dir string) *LogBrowser {
	return &LogBrowser{dir: dir}
}

func validateLogName(name string) error {
	if name == "" {
		return types.NewValidationError("filename", "filename must not be empty")
	}
	if strings.Contains(name, "..") ||
		strings.ContainsAny(name, "/\\\x00") {
		return types.NewValidationError("filename", "invalid filename")
	}
	return nil
}

func (b *LogBrowser) List() ([]LogFileInfo, error) {
	entries, err := os.ReadDir(b.dir)
	if os.IsNotExist(err) {
		return []LogFileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list log dir: %w", err)
	}

	files := make([]LogFileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, LogFileInfo{
			Name:     entry.Name(),
			SizeByte: info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Modified.After(files[j].Modified) })
	return files, nil
}

// FilePath validates the name and returns the absolute path for download.
func (b *LogBrowser) FilePath(name string) (string, error) {
	if err := validateLogName(name); err != nil {
		return "", err
	}
	path := filepath.Join(b.dir, name)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", types.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return "", types.ErrNotFound
	}
	return path, nil
}

// Zip streams the named files as a zip archive. A single bad name fails the
// whole request before any bytes are written.
func (b *LogBrowser) Zip(w io.Writer, names []string) error {
	if len(names) == 0 {
		return types.NewValidationError("files", "no files selected")
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path, err := b.FilePath(name)
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}

	archive := zip.NewWriter(w)
	for i, path := range paths {
		entry, err := archive.Create(names[i])
		if err != nil {
			return fmt.Errorf("create zip entry: %w", err)
		}
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		_, err = io.Copy(entry, file)
		file.Close()
		if err != nil {
			return fmt.Errorf("write zip entry: %w", err)
		}
	}
	return archive.Close()
}
