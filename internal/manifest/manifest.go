package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// Entry describes one released artifact.
type Entry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Manifest is the checksummed listing shipped next to a release so cached
// copies of the unified outputs can be validated without re-downloading.
type Manifest struct {
	Version     string  `json:"version"`
	PublishedAt string  `json:"publishedAt"`
	Files       []Entry `json:"files"`
}

// FileName is the manifest's location inside a release directory.
const FileName = "manifest.json"

// publishTime returns the release timestamp, honoring SOURCE_DATE_EPOCH so
// rebuilds of the same inputs produce identical manifests.
func publishTime() time.Time {
	if v := os.Getenv("SOURCE_DATE_EPOCH"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(epoch, 0).UTC()
		}
	}
	return time.Now().UTC()
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Build hashes the named files under dir into a manifest. Entries are
// sorted by name so the encoded manifest is deterministic.
func Build(dir, version string, names []string) (*Manifest, error) {
	m := &Manifest{
		Version:     version,
		PublishedAt: publishTime().Format(time.RFC3339),
	}
	for _, name := range names {
		sum, size, err := hashFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", name, err)
		}
		m.Files = append(m.Files, Entry{Name: name, Size: size, SHA256: sum})
	}
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Name < m.Files[j].Name })
	return m, nil
}

// Write stores the manifest in dir.
func (m *Manifest) Write(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, FileName), append(data, '\n'), 0o644)
}

// Load reads a manifest from dir.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// VerifyDir checks every manifest entry against the files in dir. The first
// mismatch is returned; a valid directory returns nil.
func (m *Manifest) VerifyDir(dir string) error {
	for _, e := range m.Files {
		sum, size, err := hashFile(filepath.Join(dir, e.Name))
		if err != nil {
			return fmt.Errorf("verify %s: %w", e.Name, err)
		}
		if size != e.Size {
			return fmt.Errorf("verify %s: size %d, manifest says %d", e.Name, size, e.Size)
		}
		if sum != e.SHA256 {
			return fmt.Errorf("verify %s: checksum mismatch", e.Name)
		}
	}
	return nil
}
