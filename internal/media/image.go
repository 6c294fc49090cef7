// Package media implements the media cache and decoders: async image
// decode and double-buffered video prefetch, both kept off the render
// thread. A decode that finishes is cached even if a newer load was
// requested meanwhile; only a cancelled context stops a pending one.
package media

import (
	"context"
	"image"
	"image/draw"
	"os"

	// Registered decoders beyond png/jpeg/gif, so image.Decode
	// dispatches on content for anything a media bank may hold.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodedImage is the in-memory RGBA8 result of an image decode.
type DecodedImage struct {
	Width  int
	Height int
	Pixels []byte // RGBA8, row-major, no padding
}

// DecodeImageFile decodes path to RGBA8. It never touches the render
// thread: callers invoke it from a worker goroutine (see ImageWorkerPool).
func DecodeImageFile(path string) (*DecodedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &DecodeError{Kind: FileMissing, Path: path, Err: err}
		}
		return nil, &DecodeError{Kind: UnsupportedFormat, Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &DecodeError{Kind: UnsupportedFormat, Path: path, Err: err}
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *DecodedImage {
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return &DecodedImage{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pixels: rgba.Pix,
	}
}

// ImageWorkerPool runs a small bounded pool of image decode workers.
type ImageWorkerPool struct {
	requests chan imageRequest
}

type imageRequest struct {
	ctx    context.Context
	path   string
	result chan<- imageResult
}

type imageResult struct {
	image *DecodedImage
	err   error
}

// NewImageWorkerPool starts `workers` goroutines (default 2 if <= 0)
// servicing image decode requests.
func NewImageWorkerPool(workers int) *ImageWorkerPool {
	if workers <= 0 {
		workers = 2
	}
	p := &ImageWorkerPool{requests: make(chan imageRequest, workers*4)}
	for i := 0; i < workers; i++ {
		go p.loop()
	}
	return p
}

func (p *ImageWorkerPool) loop() {
	for req := range p.requests {
		if req.ctx.Err() != nil {
			req.result <- imageResult{err: req.ctx.Err()}
			continue
		}
		img, err := DecodeImageFile(req.path)
		req.result <- imageResult{image: img, err: err}
	}
}

// Decode submits path for decoding and blocks until the result is
// ready or ctx is cancelled (a cue skip or session stop).
func (p *ImageWorkerPool) Decode(ctx context.Context, path string) (*DecodedImage, error) {
	result := make(chan imageResult, 1)
	select {
	case p.requests <- imageRequest{ctx: ctx, path: path, result: result}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-result:
		return r.image, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new work. In-flight requests still complete.
func (p *ImageWorkerPool) Close() {
	close(p.requests)
}
