package media

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Kind distinguishes image items from video items.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

// Item is one entry of a playback's resolved media set.
type Item struct {
	Kind Kind
	Path string
}

// Cache resolves Items to decoded content on demand, off the render
// thread, and reports failures to the Visual Director so it can skip
// to the next item and log a warning.
type Cache struct {
	log     *logrus.Entry
	images  *ImageWorkerPool
	decoder FrameDecoder

	mu      sync.Mutex
	videos  map[string]*VideoStream
	decoded map[string]*DecodedImage
}

// NewCache builds a Media Cache backed by an image worker pool and a
// FrameDecoder used for every opened video.
func NewCache(log *logrus.Entry, imageWorkers int, decoder FrameDecoder) *Cache {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Cache{
		log:     log.WithField("component", "media_cache"),
		images:  NewImageWorkerPool(imageWorkers),
		decoder: decoder,
		videos:  make(map[string]*VideoStream),
		decoded: make(map[string]*DecodedImage),
	}
}

// LoadImage returns the decoded image at path, decoding and memoizing
// it on first use. Failures surface as a DecodeError rather than a
// panic: the director is expected to skip the item.
func (c *Cache) LoadImage(ctx context.Context, path string) (*DecodedImage, error) {
	c.mu.Lock()
	if img, ok := c.decoded[path]; ok {
		c.mu.Unlock()
		return img, nil
	}
	c.mu.Unlock()

	img, err := c.images.Decode(ctx, path)
	if err != nil {
		c.log.WithField("path", path).WithError(err).Warn("image decode failed")
		return nil, err
	}
	c.mu.Lock()
	c.decoded[path] = img
	c.mu.Unlock()
	return img, nil
}

// PrewarmImages decodes paths concurrently ahead of first display, so
// a playback's initial media cycles never pay decode latency on the
// render thread. Failures are ignored here; the per-item load path
// reports them when the item actually comes up.
func (c *Cache) PrewarmImages(ctx context.Context, paths []string) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, path := range paths {
		path := path
		c.mu.Lock()
		_, have := c.decoded[path]
		c.mu.Unlock()
		if have {
			continue
		}
		g.Go(func() error {
			img, err := c.images.Decode(ctx, path)
			if err == nil {
				c.mu.Lock()
				c.decoded[path] = img
				c.mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// OpenVideo opens (or returns the already-open) VideoStream for path.
func (c *Cache) OpenVideo(ctx context.Context, path string) (*VideoStream, error) {
	c.mu.Lock()
	if vs, ok := c.videos[path]; ok {
		c.mu.Unlock()
		return vs, nil
	}
	c.mu.Unlock()

	vs, err := Open(ctx, path, c.decoder)
	if err != nil {
		c.log.WithField("path", path).WithError(err).Warn("video open failed")
		return nil, err
	}

	c.mu.Lock()
	c.videos[path] = vs
	c.mu.Unlock()
	return vs, nil
}

// Release closes and forgets the video at path (called when a
// playback is replaced or a cue is skipped; cancelled work must not
// keep frame buffers alive).
func (c *Cache) Release(path string) {
	c.mu.Lock()
	vs, ok := c.videos[path]
	if ok {
		delete(c.videos, path)
	}
	c.mu.Unlock()
	if ok {
		vs.Close()
	}
}

// Close releases every open video and stops the image worker pool.
func (c *Cache) Close() {
	c.mu.Lock()
	videos := c.videos
	c.videos = make(map[string]*VideoStream)
	c.decoded = make(map[string]*DecodedImage)
	c.mu.Unlock()
	for _, vs := range videos {
		vs.Close()
	}
	c.images.Close()
}
