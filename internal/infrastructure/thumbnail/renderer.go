// Package thumbnail renders bounded JPEG previews. Images are handled
// in-process; PDF and video previews shell out to pdftoppm and ffmpeg,
// which must be present on the worker host.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

const jpegQuality = 85

type Renderer struct {
	maxSize int
}

func NewRenderer(maxSize int) *Renderer {
	if maxSize <= 0 {
		maxSize = 300
	}
	return &Renderer{maxSize: maxSize}
}

func (r *Renderer) Render(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return r.renderImage(data)
	case mimeType == "application/pdf":
		return r.renderPDF(ctx, data)
	case strings.HasPrefix(mimeType, "video/"):
		return r.renderVideo(ctx, data, mimeType)
	default:
		return nil, domain.WrapError(domain.ErrUnsupported, "thumbnail.render",
			fmt.Errorf("no preview for %s", mimeType))
	}
}

func (r *Renderer) renderImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return r.encode(src)
}

// renderPDF rasterizes the first page at 150 DPI and thumbnails the result.
func (r *Renderer) renderPDF(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "thumb-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	source := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(source, data, 0o600); err != nil {
		return nil, fmt.Errorf("write source pdf: %w", err)
	}

	out := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", pdftoppmArgs(source, out)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(output)))
	}

	rendered, err := firstRenderedPage(dir)
	if err != nil {
		return nil, err
	}
	return r.renderImage(rendered)
}

// pdftoppmArgs renders only page one. 150 DPI keeps small print legible
// after the downscale to the thumbnail bound.
func pdftoppmArgs(source, out string) []string {
	return []string{"-png", "-f", "1", "-l", "1", "-r", "150", source, out}
}

// renderVideo grabs a frame one second in, falling back to the first frame
// for clips shorter than that.
func (r *Renderer) renderVideo(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "thumb-video-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	source := filepath.Join(dir, "source"+videoExtension(mimeType))
	if err := os.WriteFile(source, data, 0o600); err != nil {
		return nil, fmt.Errorf("write source video: %w", err)
	}

	frame := filepath.Join(dir, "frame.png")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", "1", "-i", source, "-frames:v", "1", "-y", frame)
	if output, err := cmd.CombinedOutput(); err != nil {
		cmd = exec.CommandContext(ctx, "ffmpeg",
			"-i", source, "-frames:v", "1", "-y", frame)
		if output2, err2 := cmd.CombinedOutput(); err2 != nil {
			return nil, fmt.Errorf("ffmpeg: %w: %s / %s", err2,
				strings.TrimSpace(string(output)), strings.TrimSpace(string(output2)))
		}
	}

	rendered, err := os.ReadFile(frame)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return r.renderImage(rendered)
}

// encode scales the image to fit the bounding square, flattens any alpha
// onto white, and emits JPEG.
func (r *Renderer) encode(src image.Image) ([]byte, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty image")
	}

	targetW, targetH := fitWithin(width, height, r.maxSize)
	canvas := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func fitWithin(width, height, max int) (int, int) {
	if width <= max && height <= max {
		return width, height
	}
	if width >= height {
		scaled := height * max / width
		if scaled < 1 {
			scaled = 1
		}
		return max, scaled
	}
	scaled := width * max / height
	if scaled < 1 {
		scaled = 1
	}
	return scaled, max
}

func firstRenderedPage(dir string) ([]byte, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page*.png"))
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages")
	}
	return os.ReadFile(matches[0])
}

func videoExtension(mimeType string) string {
	switch mimeType {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	default:
		return ".bin"
	}
}
