package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/models"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/storage"
	"github.com/MrUnggoy/ConvertAllHub-sub000/internal/validate"
)

// LocalExecutor performs conversions in-process: image re-encoding, naive
// background segmentation and text transforms. Progress is reported via
// coarse synthetic milestones since no byte-level signal exists here.
type LocalExecutor struct {
	store storage.Store
}

// NewLocalExecutor creates a local executor writing outputs to store.
func NewLocalExecutor(store storage.Store) *LocalExecutor {
	return &LocalExecutor{store: store}
}

// Synthetic progress milestones for local transforms.
const (
	milestoneRead      = 10
	milestoneDecoded   = 40
	milestoneTransform = 70
	milestoneEncoded   = 90
)

// Execute dispatches on the tool id.
func (e *LocalExecutor) Execute(ctx context.Context, in Input, targetFormat string, opts Options, onProgress ProgressFunc) (*models.ConversionResult, error) {
	start := time.Now()

	var (
		result *models.ConversionResult
		err    error
	)

	switch in.ToolID {
	case "image-background-remove":
		result, err = e.removeBackground(ctx, in, onProgress)
	case "text-case":
		result, err = e.transformText(ctx, in, opts, onProgress)
	default:
		result, err = e.reencodeImage(ctx, in, targetFormat, opts, onProgress)
	}

	if err != nil {
		return nil, Normalize(err)
	}

	result.DurationSeconds = time.Since(start).Seconds()
	notify(onProgress, 100)
	return result, nil
}

func (e *LocalExecutor) reencodeImage(ctx context.Context, in Input, targetFormat string, opts Options, onProgress ProgressFunc) (*models.ConversionResult, error) {
	img, srcFormat, err := e.decodeImage(ctx, in, onProgress)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notify(onProgress, milestoneTransform)

	data, err := encodeImage(img, targetFormat, opts)
	if err != nil {
		return nil, err
	}
	notify(onProgress, milestoneEncoded)

	return e.saveOutput(in, targetFormat, data, map[string]string{
		"sourceFormat": srcFormat,
		"width":        strconv.Itoa(img.Bounds().Dx()),
		"height":       strconv.Itoa(img.Bounds().Dy()),
	})
}

// removeBackground makes bright pixels transparent: a brightness threshold
// over the luma of each pixel, output always png.
func (e *LocalExecutor) removeBackground(ctx context.Context, in Input, onProgress ProgressFunc) (*models.ConversionResult, error) {
	img, srcFormat, err := e.decodeImage(ctx, in, onProgress)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	const threshold = 0xd000 // 16-bit channel scale

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			luma := (299*r + 587*g + 114*b) / 1000
			if luma > threshold {
				a = 0
			}
			out.SetNRGBA(x, y, color.NRGBA{
				R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8),
			})
		}
	}
	notify(onProgress, milestoneTransform)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	notify(onProgress, milestoneEncoded)

	return e.saveOutput(in, "png", buf.Bytes(), map[string]string{
		"sourceFormat": srcFormat,
		"operation":    "background-remove",
	})
}

func (e *LocalExecutor) transformText(ctx context.Context, in Input, opts Options, onProgress ProgressFunc) (*models.ConversionResult, error) {
	notify(onProgress, milestoneRead)
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notify(onProgress, milestoneDecoded)

	text := string(data)
	mode := opts.Extra["case"]
	switch mode {
	case "upper":
		text = strings.ToUpper(text)
	case "lower":
		text = strings.ToLower(text)
	case "title":
		text = strings.Title(text) //nolint:staticcheck // word-boundary casing is what the tool advertises
	default:
		return nil, fmt.Errorf("unknown case mode %q", mode)
	}
	notify(onProgress, milestoneEncoded)

	return e.saveOutput(in, "txt", []byte(text), map[string]string{
		"operation": "case-" + mode,
	})
}

func (e *LocalExecutor) decodeImage(ctx context.Context, in Input, onProgress ProgressFunc) (image.Image, string, error) {
	notify(onProgress, milestoneRead)

	f, err := os.Open(in.Path)
	if err != nil {
		return nil, "", fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	notify(onProgress, milestoneDecoded)
	return img, format, nil
}

func encodeImage(img image.Image, targetFormat string, opts Options) ([]byte, error) {
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	switch strings.ToLower(targetFormat) {
	case "jpg", "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, fmt.Errorf("encoding gif: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported target format %q", targetFormat)
	}
	return buf.Bytes(), nil
}

func (e *LocalExecutor) saveOutput(in Input, targetFormat string, data []byte, metadata map[string]string) (*models.ConversionResult, error) {
	name := outputName(in.Name, targetFormat)
	info, err := e.store.SaveBytes(name, storage.KindOutput, data)
	if err != nil {
		return nil, fmt.Errorf("storing output: %w", err)
	}

	return &models.ConversionResult{
		OutputRef:    info.ID,
		OutputSize:   info.Size,
		OutputFormat: targetFormat,
		Metadata:     metadata,
	}, nil
}

// outputName swaps the extension of the source name for the target format.
func outputName(name, targetFormat string) string {
	ext := validate.Extension(name)
	if ext == "" {
		return name + "." + targetFormat
	}
	return name[:len(name)-len(ext)] + targetFormat
}
