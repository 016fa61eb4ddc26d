package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob"
	blobfs "github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob/fs"
	blobmem "github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob/memory"
	blobs3 "github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/blob/s3"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/db"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/redis"
)

type Infra struct {
	PG    *pgxpool.Pool
	Redis *goredis.Client
	Blob  blob.Store
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Infra, error) {
	pool, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}

	store, err := NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("blob store: %w", err)
	}

	logger.Info("infra ready", zap.String("storage", string(store.Driver())))
	return &Infra{PG: pool, Redis: rdb, Blob: store}, nil
}

// NewBlobStore picks the driver named by STORAGE_DRIVER.
func NewBlobStore(ctx context.Context, cfg config.Storage) (blob.Store, error) {
	switch blob.Driver(cfg.Driver) {
	case blob.DriverFS:
		return blobfs.New(cfg.Root)
	case blob.DriverMemory:
		return blobmem.New(), nil
	case blob.DriverS3:
		return blobs3.New(ctx, blobs3.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PathStyle:       cfg.S3PathStyle,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		})
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func (i *Infra) Close() {
	if i == nil {
		return
	}
	if i.PG != nil {
		i.PG.Close()
	}
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
}
