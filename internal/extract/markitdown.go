// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pdiddy/research-pipeline/internal/container"
	"github.com/pdiddy/research-pipeline/pkg/types"
)

// DefaultImage is the markitdown container image.
const DefaultImage = "markitdown:latest"

// Markitdown converts PDFs by piping them through the markitdown image.
type Markitdown struct {
	runtime container.Runtime
	image   string
}

// NewMarkitdown returns a PDF extractor running image on rt. It fails when
// the image is not present locally.
func NewMarkitdown(ctx context.Context, rt container.Runtime, image string) (*Markitdown, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("%w: markitdown image not available in %s: %w", types.ErrConfig, rt.Name(), err)
	}
	return &Markitdown{runtime: rt, image: image}, nil
}

// Extract converts the PDF at path to Markdown and splits it into pages.
// Conversion failures and empty output mark the PDF as corrupt.
func (m *Markitdown) Extract(ctx context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, m.image, f, &out); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: converting %s: %w", types.ErrCorruptDocument, path, err)
	}
	if strings.TrimSpace(out.String()) == "" {
		return nil, fmt.Errorf("%w: markitdown produced empty output for %s", types.ErrCorruptDocument, path)
	}
	return newDocument(path, out.String()), nil
}
