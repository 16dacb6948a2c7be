package object

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123... Objects are zlib-compressed
// on disk and framed exactly as Git frames them, so a repository written
// by this store is readable by Git and vice versa.
type Store struct {
	root  string
	cache ObjectCache
}

// ObjectCache is satisfied by internal/objcache.Cache; it is optional and
// Store works correctly (just slower) with a nil cache.
type ObjectCache interface {
	Get(h Hash) (ObjectType, []byte, bool)
	Add(h Hash, objType ObjectType, data []byte)
}

// NewStore creates a Store rooted at the given directory. The objects/
// subdirectory is created lazily on first write.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// SetCache attaches a read-through cache of decompressed object payloads.
func (s *Store) SetCache(c ObjectCache) { s.cache = c }

// objectPath returns the filesystem path for a given hash.
func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *Store) Has(h Hash) bool {
	if len(h) != 40 {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Exists is an alias for Has, matching the Object Store's spec name.
func (s *Store) Exists(h Hash) bool { return s.Has(h) }

// Write stores an object and returns its content hash. Writes are
// idempotent and atomic: data is zlib-compressed into a temp file which is
// then renamed into place.
func (s *Store) Write(objType ObjectType, data []byte) (Hash, error) {
	h := HashObject(objType, data)

	if s.Has(h) {
		return h, nil
	}

	raw := frame(objType, data)

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	zw := zlib.NewWriter(tmp)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: compress close: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	dest := s.objectPath(h)
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}

	if s.cache != nil {
		s.cache.Add(h, objType, data)
	}
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw payload.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if s.cache != nil {
		if objType, data, ok := s.cache.Get(h); ok {
			return objType, data, nil
		}
	}

	f, err := os.Open(s.objectPath(h))
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: decompress: %w", h, err)
	}

	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object read %s: invalid format (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("object read %s: invalid header %q", h, header)
	}
	objType := ObjectType(parts[0])
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: invalid length %q: %w", h, parts[1], err)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf("object read %s: length mismatch (header=%d, actual=%d)", h, length, len(content))
	}

	if s.cache != nil {
		s.cache.Add(h, objType, content)
	}
	return objType, content, nil
}

// Resolve expands an abbreviated hex prefix (>= 4 characters) to the full
// OID of the single object it names. It returns an error if no object
// matches, or if more than one object matches (ambiguous).
func (s *Store) Resolve(prefix string) (Hash, error) {
	if len(prefix) == 40 {
		if s.Has(Hash(prefix)) {
			return Hash(prefix), nil
		}
		return "", fmt.Errorf("resolve %q: no such object", prefix)
	}
	if len(prefix) < 4 {
		return "", fmt.Errorf("resolve %q: prefix too short (need >= 4 hex chars)", prefix)
	}

	dirName := prefix[:2]
	rest := prefix[2:]
	dir := filepath.Join(s.root, "objects", dirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("resolve %q: no such object", prefix)
		}
		return "", fmt.Errorf("resolve %q: %w", prefix, err)
	}

	var matches []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), rest) {
			matches = append(matches, e.Name())
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("resolve %q: no such object", prefix)
	case 1:
		return Hash(dirName + matches[0]), nil
	default:
		return "", fmt.Errorf("resolve %q: ambiguous object prefix", prefix)
	}
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeBlob {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeBlob)
	}
	return UnmarshalBlob(data)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	return s.Write(TypeTree, MarshalTree(tr))
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeTree {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeTree)
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeCommit {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeCommit)
	}
	return UnmarshalCommit(data)
}
