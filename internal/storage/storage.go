// Package storage implements the blob storage port for uploaded images.
package storage

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Store is the blob storage port. Save generates the stored name; callers
// keep only that logical name and resolve it back through URL or Open.
type Store interface {
	Save(originalName string, r io.Reader) (string, error)
	Open(name string) (io.ReadCloser, error)
	Delete(name string) error
	URL(name string) string
	List() ([]string, error)
}

// DiskStore keeps uploads under root/folder and serves them under
// /uploads/{folder}/{name}.
type DiskStore struct {
	root   string
	folder string
}

func NewDiskStore(root, folder string) (*DiskStore, error) {
	dir := filepath.Join(root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "storage mkdir")
	}
	return &DiskStore{root: root, folder: folder}, nil
}

// genName produces "{UTC-timestamp}_{16-hex-chars}{original-extension}".
func genName(originalName string) string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	ext := strings.ToLower(filepath.Ext(originalName))
	return time.Now().UTC().Format("20060102150405") + "_" + hex.EncodeToString(buf) + ext
}

func (s *DiskStore) path(name string) string {
	// reject traversal in stored names
	return filepath.Join(s.root, s.folder, filepath.Base(name))
}

func (s *DiskStore) Save(originalName string, r io.Reader) (string, error) {
	name := genName(originalName)
	f, err := os.Create(s.path(name))
	if err != nil {
		return "", errors.Wrap(err, "storage create")
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(s.path(name))
		return "", errors.Wrap(err, "storage write")
	}
	return name, nil
}

func (s *DiskStore) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		return nil, errors.Wrap(err, "storage open")
	}
	return f, nil
}

func (s *DiskStore) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "storage delete")
	}
	return nil
}

func (s *DiskStore) URL(name string) string {
	return "/uploads/" + s.folder + "/" + filepath.Base(name)
}

// List returns the stored file names, used by the orphan GC job.
func (s *DiskStore) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, s.folder))
	if err != nil {
		return nil, errors.Wrap(err, "storage list")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
