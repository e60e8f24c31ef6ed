package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-redis/redis/v8"
	"github.com/minio/minio-go/v7"

	"satyam-ai-go/internal/config"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMinIO = "minio"
)

func encodeEntries(entries map[string]Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "    ")
}

func decodeEntries(data []byte) (map[string]Entry, error) {
	entries := map[string]Entry{}
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode cache: %w", err)
	}
	return entries, nil
}

// FileStore 把缓存保存为本地 JSON 文件。
type FileStore struct {
	Path string
}

func (s *FileStore) Load(_ context.Context) (map[string]Entry, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return decodeEntries(data)
}

// Save 先写临时文件再重命名，避免写到一半的文件被读取。
func (s *FileStore) Save(_ context.Context, entries map[string]Entry) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".response_cache-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// RedisStore 把整个缓存映射保存在一个 Redis key 中。
type RedisStore struct {
	Client *redis.Client
	Key    string
}

func (s *RedisStore) Load(ctx context.Context) (map[string]Entry, error) {
	data, err := s.Client.Get(ctx, s.Key).Bytes()
	if err == redis.Nil {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache from redis: %w", err)
	}
	return decodeEntries(data)
}

func (s *RedisStore) Save(ctx context.Context, entries map[string]Entry) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, s.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set cache in redis: %w", err)
	}
	return nil
}

// MinIOStore 把整个缓存映射保存为 MinIO 中的一个对象。
type MinIOStore struct {
	Client *minio.Client
	Bucket string
	Object string
}

func (s *MinIOStore) Load(ctx context.Context) (map[string]Entry, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, s.Object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get cache object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read cache object: %w", err)
	}
	return decodeEntries(data)
}

func (s *MinIOStore) Save(ctx context.Context, entries map[string]Entry) error {
	data, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	_, err = s.Client.PutObject(ctx, s.Bucket, s.Object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put cache object: %w", err)
	}
	return nil
}

// Backends 提供 redis 与 minio 后端所需的客户端，未使用的可以为空。
type Backends struct {
	Redis  *redis.Client
	MinIO  *minio.Client
	Bucket string
}

// NewStore 根据 cfg.Backend 选择持久化后端。
func NewStore(cfg config.CacheConfig, b Backends) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return &FileStore{Path: cfg.Path}, nil
	case BackendRedis:
		if b.Redis == nil {
			return nil, errors.New("cache backend redis requires a redis client")
		}
		return &RedisStore{Client: b.Redis, Key: cfg.RedisKey}, nil
	case BackendMinIO:
		if b.MinIO == nil {
			return nil, errors.New("cache backend minio requires a minio client")
		}
		return &MinIOStore{Client: b.MinIO, Bucket: b.Bucket, Object: cfg.ObjectName}, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}
