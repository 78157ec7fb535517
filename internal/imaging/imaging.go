// Package imaging loads scanned ECG images and prepares them for the vision
// model: format detection, decoding, downscaling oversized scans under the
// API payload budget, and base64 packaging.
package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

func init() {
	// Flatbed scanners commonly emit TIFF and BMP; register them alongside
	// the stdlib formats so image.Decode can sniff all of them.
	image.RegisterFormat("tiff", "II*\x00", tiff.Decode, tiff.DecodeConfig)
	image.RegisterFormat("tiff", "MM\x00*", tiff.Decode, tiff.DecodeConfig)
	image.RegisterFormat("bmp", "BM", bmp.Decode, bmp.DecodeConfig)
}

// maxEncodedBytes bounds the base64 payload sent to the inference API.
// Oversized scans are re-encoded at progressively smaller dimensions.
const maxEncodedBytes = 4 << 20

// maxDimension caps either edge of the image sent to the model; vision
// models tile anything larger without accuracy gains.
const maxDimension = 3000

// Scan is a loaded, API-ready scan image.
type Scan struct {
	// MediaType is the type of the payload actually sent ("image/png" or
	// "image/jpeg"), which may differ from the source file's format.
	MediaType string
	// Base64 is the encoded payload.
	Base64 string
	// Width and Height are the (possibly downscaled) pixel dimensions.
	Width  int
	Height int
	// SourceBytes is the on-disk size of the original file.
	SourceBytes int64
}

// SupportedExtensions lists the file extensions accepted by Load, used by
// inbox scans and the watch command to filter directory entries.
var SupportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// IsSupported reports whether path has a recognized scan extension.
func IsSupported(path string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Load reads, decodes, and prepares the scan at path.
func Load(path string) (*Scan, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "imaging: stat %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "imaging: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, eris.Wrapf(err, "imaging: decode %s", path)
	}

	scan, err := prepare(img, format)
	if err != nil {
		return nil, err
	}
	scan.SourceBytes = info.Size()

	zap.L().Debug("imaging: scan loaded",
		zap.String("path", path),
		zap.String("source_format", format),
		zap.String("media_type", scan.MediaType),
		zap.Int("width", scan.Width),
		zap.Int("height", scan.Height),
	)
	return scan, nil
}

// prepare downscales img as needed and encodes it under the payload budget.
// Photographic sources re-encode as JPEG; everything else (scanner output
// with sharp gridlines) stays PNG to avoid smearing the trace.
func prepare(img image.Image, format string) (*Scan, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, eris.New("imaging: empty image")
	}

	if w > maxDimension || h > maxDimension {
		img = resizeToFit(img, maxDimension)
		bounds = img.Bounds()
		w, h = bounds.Dx(), bounds.Dy()
	}

	asJPEG := format == "jpeg"
	for {
		data, mediaType, err := encode(img, asJPEG)
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(data)
		if len(encoded) <= maxEncodedBytes {
			return &Scan{
				MediaType: mediaType,
				Base64:    encoded,
				Width:     w,
				Height:    h,
			}, nil
		}

		// Still too big: halve the longer edge and try again. A scan that
		// cannot fit at minimum legible size is rejected.
		longest := w
		if h > longest {
			longest = h
		}
		next := longest / 2
		if next < 600 {
			return nil, eris.Errorf("imaging: scan does not fit payload budget even at %dx%d", w, h)
		}
		img = resizeToFit(img, next)
		bounds = img.Bounds()
		w, h = bounds.Dx(), bounds.Dy()
	}
}

func encode(img image.Image, asJPEG bool) ([]byte, string, error) {
	var buf bytes.Buffer
	if asJPEG {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			return nil, "", eris.Wrap(err, "imaging: encode jpeg")
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", eris.Wrap(err, "imaging: encode png")
	}
	return buf.Bytes(), "image/png", nil
}

// resizeToFit scales img so its longer edge equals limit, preserving aspect
// ratio.
func resizeToFit(img image.Image, limit int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var nw, nh int
	if w >= h {
		nw = limit
		nh = h * limit / w
	} else {
		nh = limit
		nw = w * limit / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
