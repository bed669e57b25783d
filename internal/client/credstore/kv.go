package credstore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// KeyValue is the device-local persistence layer under the Store.
type KeyValue interface {
	// Load returns the values present for keys. Missing keys are absent from the map.
	Load(keys ...string) (map[string]string, error)
	// Store writes all entries in one atomic step.
	Store(entries map[string]string) error
	// Remove deletes keys. Removing a missing key is not an error.
	Remove(keys ...string) error
}

// MemoryKV keeps entries in process memory.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Load(keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryKV) Store(entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.data[k] = v
	}
	return nil
}

func (m *MemoryKV) Remove(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// ErrCorrupt marks a document that exists but cannot be opened or decoded,
// e.g. sealed under another passphrase.
var ErrCorrupt = errors.New("credential document unreadable")

// FileKV keeps entries in a single JSON document on disk. When an AEAD is
// configured the document is sealed as nonce || ciphertext.
type FileKV struct {
	path string
	aead cipher.AEAD
	mu   sync.Mutex
}

// NewFileKV returns a FileKV backed by path. aead may be nil for a plain file.
func NewFileKV(path string, aead cipher.AEAD) *FileKV {
	return &FileKV{path: path, aead: aead}
}

func (f *FileKV) Load(keys ...string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := doc[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *FileKV) Store(entries map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.readOrReset()
	if err != nil {
		return err
	}
	for k, v := range entries {
		doc[k] = v
	}
	return f.write(doc)
}

func (f *FileKV) Remove(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if errors.Is(err, ErrCorrupt) {
		if err := f.quarantine(); err != nil {
			return err
		}
		return f.write(make(map[string]string))
	}
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := doc[k]; ok {
			delete(doc, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.write(doc)
}

func (f *FileKV) read() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	if f.aead != nil {
		ns := f.aead.NonceSize()
		if len(raw) < ns {
			return nil, fmt.Errorf("open %s: sealed document too short: %w", f.path, ErrCorrupt)
		}
		raw, err = f.aead.Open(nil, raw[:ns], raw[ns:], nil)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w: %w", f.path, ErrCorrupt, err)
		}
	}

	doc := make(map[string]string)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", f.path, ErrCorrupt, err)
	}
	return doc, nil
}

// readOrReset reads the document, moving an unreadable one aside and
// starting over with an empty document.
func (f *FileKV) readOrReset() (map[string]string, error) {
	doc, err := f.read()
	if errors.Is(err, ErrCorrupt) {
		if err := f.quarantine(); err != nil {
			return nil, err
		}
		return make(map[string]string), nil
	}
	return doc, err
}

// quarantine renames the current document to path + ".corrupt".
func (f *FileKV) quarantine() error {
	if err := os.Rename(f.path, f.path+".corrupt"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("move aside %s: %w", f.path, err)
	}
	return nil
}

// write replaces the document through a temp file and rename so a crash never
// leaves a half-written file behind.
func (f *FileKV) write(doc map[string]string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if f.aead != nil {
		nonce := make([]byte, f.aead.NonceSize())
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("generate nonce: %w", err)
		}
		raw = f.aead.Seal(nonce, nonce, raw, nil)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
