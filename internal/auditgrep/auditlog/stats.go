package auditlog

import (
	"os"
	"path/filepath"
	"time"
)

// FileStats describes an audit log file on disk.
type FileStats struct {
	File     string
	Path     string
	Size     int64
	Modified time.Time
}

// Stat reports size and modification time of the audit log at path.
func Stat(path string) (FileStats, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return FileStats{}, &FileAccessError{Path: path, Err: err}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return FileStats{
		File:     fi.Name(),
		Path:     abs,
		Size:     fi.Size(),
		Modified: fi.ModTime(),
	}, nil
}
