package repository

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// CachedImage — закэшированный бинарный payload записи.
type CachedImage struct {
	Data        []byte
	ContentType string
}

// ImageCache — ограниченный LRU-кэш недавно запрошенных изображений.
// Снимает повторные чтения больших blob-ов из базы при скачивании.
type ImageCache struct {
	entries *lru.Cache[string, CachedImage]
	logger  *zap.Logger
}

func NewImageCache(size int, logger *zap.Logger) (*ImageCache, error) {
	entries, err := lru.New[string, CachedImage](size)
	if err != nil {
		return nil, err
	}
	return &ImageCache{
		entries: entries,
		logger:  logger,
	}, nil
}

func (c *ImageCache) Get(id string) (CachedImage, bool) {
	img, ok := c.entries.Get(id)
	if ok {
		c.logger.Debug("image served from cache", zap.String("id", id))
	}
	return img, ok
}

func (c *ImageCache) Add(id string, data []byte, contentType string) {
	c.entries.Add(id, CachedImage{Data: data, ContentType: contentType})
}

// Remove вычищает запись после удаления, чтобы кэш не отдавал удалённые данные.
func (c *ImageCache) Remove(id string) {
	c.entries.Remove(id)
}
