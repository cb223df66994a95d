package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ValentinKolb/mvattr/lib/attribute"
)

const (
	DataSuffix       = ".dat"  // data file suffix
	DictionarySuffix = ".udat" // dictionary file suffix (enumerated format only)

	writeBufferSize = 1024 * 1024
)

// --------------------------------------------------------------------------
// DirFileSet
// --------------------------------------------------------------------------

// DirFileSet is the file pair <Dir>/<Name>.dat and <Dir>/<Name>.udat.
// Files are written to a temporary name and renamed into place on Close. Save finishes
// both temporary files before it renames either of them.
type DirFileSet struct {
	Dir  string
	Name string
}

var (
	_ attribute.SaveTarget = DirFileSet{}
	_ attribute.LoadSource = DirFileSet{}
)

// NewDirFileSet returns the file pair for the column name inside dir.
func NewDirFileSet(dir, name string) DirFileSet {
	return DirFileSet{Dir: dir, Name: name}
}

func (f DirFileSet) DataPath() string {
	return filepath.Join(f.Dir, f.Name+DataSuffix)
}

func (f DirFileSet) DictionaryPath() string {
	return filepath.Join(f.Dir, f.Name+DictionarySuffix)
}

func (f DirFileSet) DataWriter() (io.WriteCloser, error) {
	return createFile(f.DataPath())
}

func (f DirFileSet) DictionaryWriter() (io.WriteCloser, error) {
	return createFile(f.DictionaryPath())
}

// Header reads the header of the data file.
func (f DirFileSet) Header() (Header, error) {
	r, err := f.DataReader()
	if err != nil {
		return Header{}, err
	}
	defer r.Close()
	return ReadHeader(r)
}

func (f DirFileSet) DataReader() (io.ReadCloser, error) {
	return os.Open(f.DataPath())
}

func (f DirFileSet) DictionaryBytes() ([]byte, error) {
	return os.ReadFile(f.DictionaryPath())
}

// Exists reports whether the data file exists.
func (f DirFileSet) Exists() bool {
	_, err := os.Stat(f.DataPath())
	return err == nil
}

// Remove deletes both files. Missing files are not an error.
func (f DirFileSet) Remove() error {
	for _, path := range []string{f.DataPath(), f.DictionaryPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// fileWriter writes to <path>.tmp. Finish makes the temporary file durable, Commit renames
// it to path and Close does both.
type fileWriter struct {
	path string
	file *os.File
	bw   *bufio.Writer
}

func createFile(path string) (*fileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(path + ".tmp")
	if err != nil {
		return nil, err
	}
	return &fileWriter{path: path, file: file, bw: bufio.NewWriterSize(file, writeBufferSize)}, nil
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.bw.Write(p)
}

func (w *fileWriter) Finish() error {
	if err := w.bw.Flush(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("flushing %s: %w", w.path, err)
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("syncing %s: %w", w.path, err)
	}
	return w.file.Close()
}

func (w *fileWriter) Commit() error {
	return os.Rename(w.path+".tmp", w.path)
}

func (w *fileWriter) Close() error {
	if err := w.Finish(); err != nil {
		return err
	}
	return w.Commit()
}

// Abort drops the temporary file and leaves an existing file at path untouched.
func (w *fileWriter) Abort() error {
	_ = w.file.Close()
	return os.Remove(w.path + ".tmp")
}

// --------------------------------------------------------------------------
// MemFileSet
// --------------------------------------------------------------------------

// MemFileSet keeps the file pair in memory.
//
// Thread-safety: both writers can be used concurrently.
type MemFileSet struct {
	mu         sync.Mutex
	data       []byte
	dictionary []byte
}

var (
	_ attribute.SaveTarget = (*MemFileSet)(nil)
	_ attribute.LoadSource = (*MemFileSet)(nil)
)

// NewMemFileSet creates a file set from existing contents, both may be nil.
func NewMemFileSet(data, dictionary []byte) *MemFileSet {
	return &MemFileSet{data: data, dictionary: dictionary}
}

// memWriter buffers a file and stores it in the set on Commit.
type memWriter struct {
	buf   bytes.Buffer
	store func([]byte)
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *memWriter) Finish() error { return nil }

func (w *memWriter) Commit() error {
	// never store nil, an empty file still exists
	w.store(append([]byte{}, w.buf.Bytes()...))
	return nil
}

func (w *memWriter) Abort() error {
	w.buf.Reset()
	return nil
}

func (w *memWriter) Close() error { return w.Commit() }

func (m *MemFileSet) DataWriter() (io.WriteCloser, error) {
	return &memWriter{store: func(b []byte) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.data = b
	}}, nil
}

func (m *MemFileSet) DictionaryWriter() (io.WriteCloser, error) {
	return &memWriter{store: func(b []byte) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.dictionary = b
	}}, nil
}

func (m *MemFileSet) DataReader() (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, fmt.Errorf("no data file: %w", os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

func (m *MemFileSet) DictionaryBytes() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dictionary == nil {
		return nil, fmt.Errorf("no dictionary file: %w", os.ErrNotExist)
	}
	return m.dictionary, nil
}

// Data returns the data file contents.
func (m *MemFileSet) Data() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// Dictionary returns the dictionary file contents.
func (m *MemFileSet) Dictionary() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dictionary
}

// SetData replaces the data file contents.
func (m *MemFileSet) SetData(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = b
}

// SetDictionary replaces the dictionary file contents.
func (m *MemFileSet) SetDictionary(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dictionary = b
}
