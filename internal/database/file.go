package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps every collection in memory and persists each one as a
// single JSON object keyed by document ID in <dir>/<collection>.json.
// A collection is loaded from disk the first time it is touched and
// reloaded whenever the file changes underneath it, so writes made by
// another process over the same directory (the admin CLI) are not lost.
type FileStore struct {
	mu          sync.Mutex
	dir         string
	collections map[string]*orderedCollection
}

type orderedCollection struct {
	keys []string
	docs map[string]Document

	// stamp of the file as last read or written by this store
	modTime time.Time
	size    int64
}

func newOrderedCollection() *orderedCollection {
	return &orderedCollection{docs: make(map[string]Document)}
}

func (c *orderedCollection) put(id string, doc Document) {
	if _, ok := c.docs[id]; !ok {
		c.keys = append(c.keys, id)
	}
	c.docs[id] = doc
}

func (c *orderedCollection) remove(id string) bool {
	if _, ok := c.docs[id]; !ok {
		return false
	}
	delete(c.docs, id)
	for i, k := range c.keys {
		if k == id {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return true
}

func (c *orderedCollection) snapshot() []Document {
	out := make([]Document, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.docs[k].Clone())
	}
	return out
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dir: dir, collections: make(map[string]*orderedCollection)}, nil
}

// NewMemoryStore returns a FileStore that never touches disk.
func NewMemoryStore() *FileStore {
	return &FileStore{collections: make(map[string]*orderedCollection)}
}

func (s *FileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// collection returns the named collection, loading it on first use and
// again whenever the file's modification time or size no longer matches
// what this store last saw. Callers hold s.mu.
func (s *FileStore) collection(name string) (*orderedCollection, error) {
	c, ok := s.collections[name]
	if s.dir == "" {
		if !ok {
			c = newOrderedCollection()
			s.collections[name] = c
		}
		return c, nil
	}

	info, err := os.Stat(s.path(name))
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !ok {
			c = newOrderedCollection()
			s.collections[name] = c
		}
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	if ok && info.ModTime().Equal(c.modTime) && info.Size() == c.size {
		return c, nil
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
	}
	fresh := newOrderedCollection()
	if err := decodeCollection(data, fresh); err != nil {
		return nil, fmt.Errorf("failed to parse collection %s: %w", name, err)
	}
	fresh.modTime, fresh.size = info.ModTime(), info.Size()
	s.collections[name] = fresh
	return fresh, nil
}

// decodeCollection reads a JSON object token by token so that the file's
// key order becomes the collection's scan order.
func decodeCollection(data []byte, c *orderedCollection) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("collection file must contain a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return errors.New("collection key must be a string")
		}
		var doc Document
		if err := dec.Decode(&doc); err != nil {
			return fmt.Errorf("document %s: %w", id, err)
		}
		if doc == nil {
			doc = Document{}
		}
		c.put(id, doc)
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func encodeCollection(c *orderedCollection) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, id := range c.keys {
		if i > 0 {
			buf.WriteString(",")
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.MarshalIndent(c.docs[id], "  ", "  ")
		if err != nil {
			return nil, err
		}
		buf.WriteString("\n  ")
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(val)
	}
	if len(c.keys) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// persist rewrites the whole collection file. Callers hold s.mu.
func (s *FileStore) persist(name string, c *orderedCollection) error {
	if s.dir == "" {
		return nil
	}
	data, err := encodeCollection(c)
	if err != nil {
		return fmt.Errorf("failed to encode collection %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write collection %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write collection %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write collection %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace collection %s: %w", name, err)
	}
	if info, err := os.Stat(s.path(name)); err == nil {
		c.modTime, c.size = info.ModTime(), info.Size()
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, collection, id string) (GetResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return GetResult{}, err
	}
	doc, ok := c.docs[id]
	if !ok {
		return GetResult{ID: id}, nil
	}
	return GetResult{Exists: true, ID: id, Data: doc.Clone()}, nil
}

func (s *FileStore) Set(ctx context.Context, collection, id string, data Document) error {
	doc, err := normalizeDocument(data)
	if err != nil {
		return err
	}
	doc["id"] = id

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	c.put(id, doc)
	return s.persist(collection, c)
}

func (s *FileStore) Update(ctx context.Context, collection, id string, partial Document) error {
	patch, err := normalizeDocument(partial)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc["id"] = id
	return s.persist(collection, c)
}

func (s *FileStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	if !c.remove(id) {
		return nil
	}
	return s.persist(collection, c)
}

func (s *FileStore) scan(collection string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	return c.snapshot(), nil
}

func (s *FileStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	docs, err := s.scan(collection)
	if err != nil {
		return nil, err
	}
	return applyQuery(docs, &filter, nil)
}

func (s *FileStore) QueryWithSort(ctx context.Context, collection string, filter *Filter, order Sort) ([]Document, error) {
	docs, err := s.scan(collection)
	if err != nil {
		return nil, err
	}
	return applyQuery(docs, filter, &order)
}

func (s *FileStore) All(ctx context.Context, collection string) ([]Document, error) {
	return s.scan(collection)
}

func (s *FileStore) Close() error {
	return nil
}
