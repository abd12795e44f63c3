package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sync"
)

type StoredObject struct {
	ContentType string
	Body        []byte
}

// MemoryUploader хранит объекты в памяти. Используется с хранилищем STORE_DRIVER=memory и в тестах.
type MemoryUploader struct {
	mu      sync.RWMutex
	objects map[string]StoredObject
	base    *url.URL
}

func NewMemoryUploader(publicBaseURL string) *MemoryUploader {
	base, _ := url.Parse(publicBaseURL)
	return &MemoryUploader{objects: make(map[string]StoredObject), base: base}
}

func (u *MemoryUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body (key: %s): %w", key, err)
	}
	sum := md5.Sum(body)

	u.mu.Lock()
	u.objects[key] = StoredObject{ContentType: contentType, Body: body}
	u.mu.Unlock()

	return &UploadResult{Key: key, Location: u.GetPublicURL(key), ETag: hex.EncodeToString(sum[:])}, nil
}

func (u *MemoryUploader) GetPublicURL(key string) string {
	return publicURL(u.base, key)
}

// Object возвращает сохраненный объект.
func (u *MemoryUploader) Object(key string) (StoredObject, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	obj, ok := u.objects[key]
	return obj, ok
}
