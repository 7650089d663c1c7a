package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-graphviz"
	"github.com/google/uuid"

	"github.com/lwaddell/depscope/pkg/errors"
)

// Format is a supported image output format.
type Format string

const (
	FormatDOT Format = "dot"
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

// ParseFormat validates a format string from user input.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatDOT, FormatSVG, FormatPNG:
		return Format(s), nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unsupported format %q (dot, svg, png)", s)
}

// Render renders DOT text into the given format. For FormatDOT the input is
// returned unchanged.
func Render(ctx context.Context, dot string, format Format) ([]byte, error) {
	if format == FormatDOT {
		return []byte(dot), nil
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "initializing graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "parsing DOT")
	}
	defer g.Close()

	target := graphviz.SVG
	if format == FormatPNG {
		target = graphviz.PNG
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, target, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "rendering %s", format)
	}
	return buf.Bytes(), nil
}

// WriteArtifact writes rendered output under dir as <prefix>_<id>.<format>,
// where id is a short unique suffix so batch runs never clobber each other.
// Returns the written path.
func WriteArtifact(dir, prefix string, format Format, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeRenderFailed, err, "creating output dir %s", dir)
	}

	name := fmt.Sprintf("%s_%s.%s", prefix, uuid.NewString()[:8], format)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeRenderFailed, err, "writing %s", path)
	}
	return path, nil
}
