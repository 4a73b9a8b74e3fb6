package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	apperrors "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/errors"
)

// File names inside a generation directory.
const (
	ManifestFile  = "manifest.msgpack"
	PostingsFile  = "postings.dat"
	DocsFile      = "docs.roaring"
	BinaryTrieExt = ".trie"
	TextTrieExt   = ".trie.txt"
)

// ManifestVersion is bumped on incompatible layout changes.
const ManifestVersion = 1

// Encoding selects the on-disk form of trie files.
type Encoding string

const (
	EncodingBinary Encoding = "binary"
	EncodingText   Encoding = "text"
)

// ParseEncoding validates an encoding name; "" means binary.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingBinary:
		return EncodingBinary, nil
	case EncodingText:
		return EncodingText, nil
	}
	return "", fmt.Errorf("%w: unknown trie encoding %q", apperrors.ErrInvalidInput, s)
}

// FieldStats describes one field of a generation.
type FieldStats struct {
	Docs  int `msgpack:"docs" json:"docs"`
	Terms int `msgpack:"terms" json:"terms"`
	Nodes int `msgpack:"nodes" json:"nodes"`
}

// Manifest is the metadata record of a generation.
type Manifest struct {
	Version   int                   `msgpack:"version" json:"version"`
	ID        string                `msgpack:"id" json:"id"`
	CreatedAt time.Time             `msgpack:"created_at" json:"created_at"`
	Encoding  Encoding              `msgpack:"encoding" json:"encoding"`
	Docs      int                   `msgpack:"docs" json:"docs"`
	Fields    map[string]FieldStats `msgpack:"fields" json:"fields"`
}

func writeManifest(path string, m *Manifest) error {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return writeFileSync(path, data)
}

// ReadManifest loads the manifest at path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedRecord, path, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: %s: unsupported manifest version %d", apperrors.ErrMalformedRecord, path, m.Version)
	}
	if _, err := ParseEncoding(string(m.Encoding)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrMalformedRecord, path, err)
	}
	return &m, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return f.Close()
}
