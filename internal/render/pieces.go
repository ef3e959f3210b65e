package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

type pieceKey struct {
	piece nchess.Piece
	size  int
}

type pieceCache struct {
	mu     sync.RWMutex
	images map[pieceKey]image.Image
}

func newPieceCache() *pieceCache {
	return &pieceCache{images: make(map[pieceKey]image.Image)}
}

func (c *pieceCache) get(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceKey{piece: piece, size: size}

	c.mu.RLock()
	img, ok := c.images[key]
	c.mu.RUnlock()
	if ok {
		return img, nil
	}

	img, err := rasterizePiece(piece, size)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images[key] = img
	c.mu.Unlock()
	return img, nil
}

func rasterizePiece(piece nchess.Piece, size int) (image.Image, error) {
	name := pieceAssetName(piece)
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG(data)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", name, err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		return nil, fmt.Errorf("piece svg %s has no size", name)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)
	return img, nil
}

func pieceAssetName(piece nchess.Piece) string {
	prefix := "b"
	if piece.Color() == nchess.White {
		prefix = "w"
	}
	var suffix string
	switch piece.Type() {
	case nchess.King:
		suffix = "K"
	case nchess.Queen:
		suffix = "Q"
	case nchess.Rook:
		suffix = "R"
	case nchess.Bishop:
		suffix = "B"
	case nchess.Knight:
		suffix = "N"
	case nchess.Pawn:
		suffix = "P"
	}
	return fmt.Sprintf("assets/pieces/%s%s.svg", prefix, suffix)
}

// sanitizeSVG normalizes style values oksvg rejects.
func sanitizeSVG(svg []byte) []byte {
	fixed := bytes.ReplaceAll(svg, []byte("fill:000000"), []byte("fill:#000000"))
	fixed = bytes.ReplaceAll(fixed, []byte("fill: #"), []byte("fill:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: #"), []byte("stroke:#"))
	return fixed
}
