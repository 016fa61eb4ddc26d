// Package fs stores blobs under a local directory (the uploads root).
// Each object gets a JSON sidecar "<file>.meta" with content type, size,
// sha256 etag and user metadata.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
)

const metaSuffix = ".meta"

type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if root == "" {
		root = "public/uploads"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Store{root: abs}, nil
}

func (s *Store) Driver() blob.Driver { return blob.DriverFS }

type meta struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// paths maps key to data and sidecar paths and double checks the result stays under root.
func (s *Store) paths(key string) (string, string, string, error) {
	k, err := blob.CleanKey(key)
	if err != nil {
		return "", "", "", err
	}
	if strings.HasSuffix(k, metaSuffix) {
		return "", "", "", fmt.Errorf("%w: reserved suffix", blob.ErrInvalidKey)
	}
	data := filepath.Join(s.root, filepath.FromSlash(k))
	if !strings.HasPrefix(data, s.root+string(os.PathSeparator)) {
		return "", "", "", fmt.Errorf("%w: outside root", blob.ErrInvalidKey)
	}
	return k, data, data + metaSuffix, nil
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	k, dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return blob.Info{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return blob.Info{}, fmt.Errorf("%w: %s", blob.ErrExists, k)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return blob.Info{}, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".upload-*")
	if err != nil {
		return blob.Info{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return blob.Info{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return blob.Info{}, err
	}

	m := meta{
		ContentType: opts.ContentType,
		Metadata:    blob.CloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Size:        size,
		UpdatedAt:   time.Now().UTC(),
	}
	b, _ := json.Marshal(m)
	if err := os.WriteFile(metaPath, b, 0o644); err != nil {
		_ = os.Remove(dataPath)
		return blob.Info{}, err
	}
	return m.info(k), nil
}

func (s *Store) Get(ctx context.Context, key string) (blob.Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return blob.Info{}, nil, err
	}
	_, dataPath, _, _ := s.paths(key)
	f, err := os.Open(dataPath)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return blob.Info{}, nil, fmt.Errorf("%w: %s", blob.ErrNotFound, info.Key)
		}
		return blob.Info{}, nil, err
	}
	return info, f, nil
}

func (s *Store) Head(_ context.Context, key string) (blob.Info, error) {
	k, _, metaPath, err := s.paths(key)
	if err != nil {
		return blob.Info{}, err
	}
	m, err := readMeta(metaPath)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return blob.Info{}, fmt.Errorf("%w: %s", blob.ErrNotFound, k)
		}
		return blob.Info{}, err
	}
	return m.info(k), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	_, dataPath, metaPath, err := s.paths(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(metaPath)
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]blob.Info, error) {
	var out []blob.Info
	err := filepath.WalkDir(s.root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(p, metaSuffix))
		if err != nil {
			return err
		}
		k := filepath.ToSlash(rel)
		if !strings.HasPrefix(k, prefix) {
			return nil
		}
		m, err := readMeta(p)
		if err != nil {
			return err
		}
		out = append(out, m.info(k))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignGet is not available on local disk; downloads are streamed.
func (s *Store) PresignGet(context.Context, string, time.Duration, string) (string, error) {
	return "", blob.ErrUnsupported
}

func (m meta) info(key string) blob.Info {
	return blob.Info{
		Key:          key,
		Size:         m.Size,
		ContentType:  m.ContentType,
		ETag:         m.ETag,
		Metadata:     blob.CloneMetadata(m.Metadata),
		LastModified: m.UpdatedAt,
	}
}

func readMeta(p string) (meta, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return meta{}, err
	}
	var m meta
	if err := json.Unmarshal(b, &m); err != nil {
		return meta{}, fmt.Errorf("decode %s: %w", filepath.Base(p), err)
	}
	return m, nil
}
