// Package memory keeps blobs in process memory; used by tests and STORAGE_DRIVER=memory.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
)

type entry struct {
	info blob.Info
	data []byte
}

type Store struct {
	mu   sync.RWMutex
	objs map[string]entry
}

func New() *Store { return &Store{objs: make(map[string]entry)} }

func (s *Store) Driver() blob.Driver { return blob.DriverMemory }

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	k, err := blob.CleanKey(key)
	if err != nil {
		return blob.Info{}, err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return blob.Info{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[k]; ok {
		return blob.Info{}, fmt.Errorf("%w: %s", blob.ErrExists, k)
	}
	info := blob.Info{
		Key:          k,
		Size:         int64(len(b)),
		ContentType:  opts.ContentType,
		Metadata:     blob.CloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}
	s.objs[k] = entry{info: info, data: b}
	return info, nil
}

func (s *Store) Get(_ context.Context, key string) (blob.Info, io.ReadCloser, error) {
	e, err := s.lookup(key)
	if err != nil {
		return blob.Info{}, nil, err
	}
	data := make([]byte, len(e.data))
	copy(data, e.data)
	return e.info, io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Store) Head(_ context.Context, key string) (blob.Info, error) {
	e, err := s.lookup(key)
	if err != nil {
		return blob.Info{}, err
	}
	return e.info, nil
}

func (s *Store) lookup(key string) (entry, error) {
	k, err := blob.CleanKey(key)
	if err != nil {
		return entry{}, err
	}
	s.mu.RLock()
	e, ok := s.objs[k]
	s.mu.RUnlock()
	if !ok {
		return entry{}, fmt.Errorf("%w: %s", blob.ErrNotFound, k)
	}
	e.info.Metadata = blob.CloneMetadata(e.info.Metadata)
	return e, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	k, err := blob.CleanKey(key)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[k]; !ok {
		return false, nil
	}
	delete(s.objs, k)
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]blob.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]blob.Info, 0, len(s.objs))
	for k, e := range s.objs {
		if strings.HasPrefix(k, prefix) {
			info := e.info
			info.Metadata = blob.CloneMetadata(info.Metadata)
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) PresignGet(context.Context, string, time.Duration, string) (string, error) {
	return "", blob.ErrUnsupported
}
