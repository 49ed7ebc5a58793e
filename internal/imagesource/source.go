// Package imagesource fetches candidate images for a holiday name from an
// external provider: web image search or a generative model.
package imagesource

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	_ "golang.org/x/image/webp" // register decoder

	"github.com/edgard/holidaybot/internal/errs"
)

// Image is one downloaded or generated picture.
type Image struct {
	Data []byte
	// Ext is the file extension matching the decoded format, e.g. ".jpeg".
	Ext string
}

// Source returns up to count images for query. Returning fewer than count is
// not an error; an error means nothing usable could be obtained.
type Source interface {
	Images(ctx context.Context, query string, count int) ([]Image, error)
}

// Inspect fully decodes data and returns it as an Image.
// Blobs that are not a supported image format, or whose pixel data is
// truncated or corrupt, are rejected.
func Inspect(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, errs.NewProviderError("empty image payload", nil)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, errs.NewProviderError("payload is not a supported image", err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return Image{}, errs.NewProviderError("image has no pixels", nil)
	}
	return Image{Data: data, Ext: "." + format}, nil
}
