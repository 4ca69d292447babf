package storagesvc

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/njautech/schoolhub/core"
)

type memObject struct {
	data []byte
	core.StoredObject
}

// MemoryStorage keeps files in memory. Used in tests and when no bucket is configured.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memObject
	uploads int
	now     core.NowFunc
}

var _ core.FileStorage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]memObject), now: core.UTCNow}
}

// SetNowFunc replaces the clock stamping uploads.
func (s *MemoryStorage) SetNowFunc(now core.NowFunc) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStorage) Upload(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "reading content")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	s.objects[key] = memObject{
		data: data,
		StoredObject: core.StoredObject{
			Key:        key,
			Size:       int64(len(data)),
			UploadedAt: s.now(),
		},
	}
	return "memory://" + key, nil
}

func (s *MemoryStorage) Download(_ context.Context, key string, w io.Writer) error {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return core.NewNotFoundError("file not found")
	}
	_, err := io.Copy(w, bytes.NewReader(obj.data))
	return errors.Wrap(err, "writing content")
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) List(_ context.Context, prefix string) ([]core.StoredObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects := make([]core.StoredObject, 0, len(s.objects))
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, obj.StoredObject)
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Uploads returns how many uploads were made, deleted objects included.
func (s *MemoryStorage) Uploads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploads
}

// Keys returns the keys of the stored objects.
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Put stores data under key as if it was uploaded at the current clock time, without counting an upload.
func (s *MemoryStorage) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{
		data:         data,
		StoredObject: core.StoredObject{Key: key, Size: int64(len(data)), UploadedAt: s.now()},
	}
}
