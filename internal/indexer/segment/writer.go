// Package segment persists index generations. A generation is a directory
// named by a time-ordered UUID that holds one trie file per field, a shared
// postings file, the set of documents it contains, and a manifest. It is
// written once, under a temporary name, and renamed into place.
package segment

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/postings"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/trie"
	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

const tmpSuffix = ".tmp"

// Writer turns builder snapshots into generation directories.
type Writer struct {
	dataDir  string
	encoding Encoding
	logger   *slog.Logger
}

// NewWriter creates a Writer that writes generations into dataDir, with
// trie files in the given encoding.
func NewWriter(dataDir string, encoding Encoding) *Writer {
	return &Writer{
		dataDir:  dataDir,
		encoding: encoding,
		logger:   slog.Default().With("component", "segment-writer"),
	}
}

// Write persists snap as a new generation and returns its manifest. The
// tries of snap have their postings attached as a side effect.
func (w *Writer) Write(snap *index.Snapshot) (*Manifest, error) {
	if snap == nil || snap.DocCount() == 0 {
		return nil, fmt.Errorf("%w: cannot write empty generation", apperrors.ErrInvalidInput)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating generation id: %w", err)
	}
	start := time.Now()
	finalDir := filepath.Join(w.dataDir, id.String())
	tmpDir := filepath.Join(w.dataDir, "."+id.String()+tmpSuffix)
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, fmt.Errorf("creating generation directory: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			os.RemoveAll(tmpDir)
		}
	}()

	manifest := &Manifest{
		Version:   ManifestVersion,
		ID:        id.String(),
		CreatedAt: time.Now().UTC(),
		Encoding:  w.encoding,
		Docs:      snap.DocCount(),
		Fields:    make(map[string]FieldStats, len(snap.Fields)),
	}
	names := snap.FieldNames()

	err = writeBuffered(filepath.Join(tmpDir, PostingsFile), func(bw io.Writer) error {
		pw := postings.NewWriter(bw)
		for _, name := range names {
			if err := snap.Fields[name].Trie.AttachPostings(pw); err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		f := snap.Fields[name]
		path := filepath.Join(tmpDir, TrieFileName(name, w.encoding))
		err := writeBuffered(path, func(bw io.Writer) error {
			if w.encoding == EncodingText {
				return trie.WriteText(f.Trie, bw)
			}
			return trie.WriteBinary(f.Trie, bw)
		})
		if err != nil {
			return nil, err
		}
		manifest.Fields[name] = FieldStats{Docs: f.Docs, Terms: f.Trie.Words(), Nodes: f.Trie.Len()}
	}

	err = writeBuffered(filepath.Join(tmpDir, DocsFile), func(bw io.Writer) error {
		_, err := snap.Docs.WriteTo(bw)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := writeManifest(filepath.Join(tmpDir, ManifestFile), manifest); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpDir, finalDir); err != nil {
		return nil, fmt.Errorf("renaming generation directory: %w", err)
	}
	ok = true

	w.logger.Info("generation written",
		"generation", manifest.ID,
		"docs", manifest.Docs,
		"fields", len(manifest.Fields),
		"encoding", manifest.Encoding,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return manifest, nil
}

// TrieFileName returns the file name of the trie of field.
func TrieFileName(field string, encoding Encoding) string {
	if encoding == EncodingText {
		return field + TextTrieExt
	}
	return field + BinaryTrieExt
}

func writeBuffered(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	bw := bufio.NewWriterSize(f, 64*1024)
	if err := fn(bw); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return f.Close()
}

// RemoveIncomplete deletes generation directories left behind by writes
// that never reached the final rename.
func RemoveIncomplete(dataDir string) error {
	matches, err := filepath.Glob(filepath.Join(dataDir, ".*"+tmpSuffix))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			return fmt.Errorf("removing incomplete generation %s: %w", m, err)
		}
	}
	return nil
}
