// Package attachments validates uploaded files, stores them in the blob
// store and records their metadata rows.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
)

var (
	ErrFileRequired    = errors.New("file is required")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

const imageMaxSize = 5 << 20

// Category is an upload destination with its owner type and file rules.
type Category struct {
	Dir       string
	OwnerType string
	MaxSize   int64 // 0 falls back to the service limit
	Allowed   map[string]bool
}

var (
	imageExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true}
	docExts   = map[string]bool{
		"pdf": true, "jpg": true, "jpeg": true, "png": true, "doc": true, "docx": true,
		"xls": true, "xlsx": true, "csv": true, "txt": true,
	}
)

var (
	Voyage      = Category{Dir: "voyage_attachments", OwnerType: "voyage", Allowed: docExts}
	VoyageLeg   = Category{Dir: "voyage_attachments", OwnerType: "voyage_leg", Allowed: docExts}
	Bunker      = Category{Dir: "bunker_attachments", OwnerType: "bunker", Allowed: map[string]bool{"pdf": true}}
	Task        = Category{Dir: "task_attachments", OwnerType: "task", Allowed: docExts}
	MemberImage = Category{Dir: "member_images", OwnerType: "member", MaxSize: imageMaxSize, Allowed: imageExts}
	VesselImage = Category{Dir: "vessel_images", OwnerType: "ship", MaxSize: imageMaxSize, Allowed: imageExts}
	FleetLogo   = Category{Dir: "fleet_logos", OwnerType: "fleet", MaxSize: imageMaxSize, Allowed: imageExts}
	UserImage   = Category{Dir: "user_images", OwnerType: "user", MaxSize: imageMaxSize, Allowed: imageExts}
)

// Stored describes a blob written for one uploaded file.
type Stored struct {
	Key          string `json:"key"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"sizeBytes"`
}

// Service writes uploads to the blob store.
type Service struct {
	store   blob.Store
	maxSize int64
	logger  *zap.Logger
}

func NewService(store blob.Store, maxSize int64, logger *zap.Logger) *Service {
	return &Service{store: store, maxSize: maxSize, logger: logger}
}

// Blob exposes the underlying store for downloads.
func (s *Service) Blob() blob.Store { return s.store }

func extOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// Validate checks size and extension without storing anything.
func (s *Service) Validate(cat Category, fh *multipart.FileHeader) error {
	if fh == nil || fh.Size <= 0 {
		return ErrFileRequired
	}
	limit := cat.MaxSize
	if limit == 0 || (s.maxSize > 0 && s.maxSize < limit) {
		limit = s.maxSize
	}
	if limit > 0 && fh.Size > limit {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, fh.Filename, limit)
	}
	if ext := extOf(fh.Filename); ext == "" || !cat.Allowed[ext] {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, fh.Filename)
	}
	return nil
}

// Save validates every file first, then stores them under {dir}/{uuid}{ext}.
// When a later file fails, the ones already written are removed.
func (s *Service) Save(ctx context.Context, cat Category, files []*multipart.FileHeader, actor string) ([]Stored, error) {
	for _, fh := range files {
		if err := s.Validate(cat, fh); err != nil {
			return nil, err
		}
	}
	out := make([]Stored, 0, len(files))
	for _, fh := range files {
		st, err := s.put(ctx, cat, fh, actor)
		if err != nil {
			s.Cleanup(ctx, Keys(out))
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Service) put(ctx context.Context, cat Category, fh *multipart.FileHeader, actor string) (Stored, error) {
	ext := "." + extOf(fh.Filename)
	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			ct = byExt
		} else {
			ct = "application/octet-stream"
		}
	}
	src, err := fh.Open()
	if err != nil {
		return Stored{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	key := path.Join(cat.Dir, uuid.NewString()+ext)
	name := filepath.Base(fh.Filename)
	info, err := s.store.Put(ctx, key, src, blob.PutOptions{
		ContentType: ct,
		Metadata:    map[string]string{"original_name": name, "uploaded_by": actor},
	})
	if err != nil {
		// a cancelled put may still have landed
		if ctx.Err() != nil {
			s.Cleanup(ctx, []string{key})
		}
		return Stored{}, fmt.Errorf("store %s: %w", name, err)
	}
	return Stored{Key: info.Key, OriginalName: name, MimeType: ct, Size: info.Size}, nil
}

// Cleanup deletes blobs left behind by a failed transaction. Errors are logged, not returned.
func (s *Service) Cleanup(ctx context.Context, keys []string) {
	for _, k := range keys {
		if _, err := s.store.Delete(context.WithoutCancel(ctx), k); err != nil {
			s.logger.Warn("attachment cleanup failed", zap.String("key", k), zap.Error(err))
		}
	}
}

func Keys(st []Stored) []string {
	keys := make([]string, len(st))
	for i, s := range st {
		keys[i] = s.Key
	}
	return keys
}
