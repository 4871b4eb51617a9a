package video

import (
	"fmt"

	"github.com/disintegration/imaging"
)

const thumbnailQuality = 85

// fitThumbnail scales the frame down to fit inside size, keeping its aspect
// ratio, and writes it as a JPEG. Frames already inside the box are kept as is.
func fitThumbnail(framePath string, size Size, output string) error {
	img, err := imaging.Open(framePath)
	if err != nil {
		return fmt.Errorf("%w: decoding frame: %s", ErrEncodeFailure, err)
	}
	b := img.Bounds()
	if int64(b.Dx()) > size.Width || int64(b.Dy()) > size.Height {
		img = imaging.Fit(img, int(size.Width), int(size.Height), imaging.Lanczos)
	}
	if err := imaging.Save(img, output, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return fmt.Errorf("%w: writing thumbnail: %s", ErrEncodeFailure, err)
	}
	return nil
}

// ThumbnailContentType is what the thumbnail file is served as.
const ThumbnailContentType = "image/jpeg"
