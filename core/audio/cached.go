package audio

import (
	"context"
	"fmt"
	"os"

	"audiomanifest/logger"
	"audiomanifest/model"
)

// FrameCache stores frame counts between runs.
type FrameCache interface {
	GetFrames(ctx context.Context, key string) (frames int64, ok bool, err error)
	SetFrames(ctx context.Context, key string, frames int64) error
}

// CachedProber 在 Prober 外包一层帧数缓存。
// 缓存键包含路径、大小和修改时间，文件变化后自动失效；缓存读写失败只记日志，照常探测。
type CachedProber struct {
	Prober Prober
	Cache  FrameCache
}

// Probe implements Prober.
func (c *CachedProber) Probe(ctx context.Context, path string) (model.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return c.Prober.Probe(ctx, path)
	}
	key := CacheKey(path, info)

	frames, ok, err := c.Cache.GetFrames(ctx, key)
	if err != nil {
		logger.Warn("frame cache read failed", logger.String("path", path), logger.ErrorField(err))
	} else if ok {
		return model.FileRecord{Path: path, FrameCount: frames}, nil
	}

	rec, err := c.Prober.Probe(ctx, path)
	if err != nil {
		return rec, err
	}
	if err := c.Cache.SetFrames(ctx, key, rec.FrameCount); err != nil {
		logger.Warn("frame cache write failed", logger.String("path", path), logger.ErrorField(err))
	}
	return rec, nil
}

// CacheKey identifies one version of a file.
func CacheKey(path string, info os.FileInfo) string {
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
}
