// Package export saves documents rendered by the analysis service to disk.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"meeting-analyzer/internal/apiclient"
	xlog "meeting-analyzer/internal/log"
)

// DefaultExtension is used when the service does not suggest a file name.
const DefaultExtension = ".docx"

// ErrEmptyDocument is returned when there is nothing to write.
var ErrEmptyDocument = errors.New("export: empty document")

// Writer stores exported documents in one output directory.
type Writer struct {
	dir string
	now func() time.Time
	log zerolog.Logger
}

// NewWriter returns a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{
		dir: dir,
		now: time.Now,
		log: xlog.WithComponent("export"),
	}
}

// DefaultFileName is the dated name used when the service suggests none.
func DefaultFileName(at time.Time) string {
	return fmt.Sprintf("meeting-transcription-%s%s", at.Format("2006-01-02"), DefaultExtension)
}

// Save writes doc atomically and returns the final path. An existing file is
// never replaced; a numeric suffix is added instead.
func (w *Writer) Save(doc apiclient.Document) (string, error) {
	if len(doc.Data) == 0 {
		return "", ErrEmptyDocument
	}
	if strings.TrimSpace(w.dir) == "" {
		return "", errors.New("export: output directory is not configured")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path, err := w.uniquePath(w.fileName(doc))
	if err != nil {
		return "", err
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("create pending export file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			w.log.Debug().Err(err).Str(xlog.FieldPath, path).Msg("cleanup pending export file")
		}
	}()

	if _, err := pending.Write(doc.Data); err != nil {
		return "", fmt.Errorf("write export data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("atomically write export file: %w", err)
	}

	w.log.Info().
		Str(xlog.FieldPath, path).
		Int(xlog.FieldBytes, len(doc.Data)).
		Msg("export saved")
	return path, nil
}

// fileName picks the server-suggested base name or the dated default.
func (w *Writer) fileName(doc apiclient.Document) string {
	name := strings.TrimSpace(doc.FileName)
	if name != "" {
		name = filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, "\\", "/")))
	}
	if name == "" || name == "/" || name == "." {
		return DefaultFileName(w.now())
	}
	return name
}

func (w *Writer) uniquePath(name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(w.dir, name)
	for i := 1; i < 1000; i++ {
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("stat export target: %w", err)
		}
		candidate = filepath.Join(w.dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
	}
	return "", fmt.Errorf("export: too many files named %s", name)
}
