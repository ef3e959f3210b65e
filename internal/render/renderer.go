// Package render draws board positions as PNG images.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/Cheese-Puzzle-bot/internal/board"
)

const DefaultSquareSize = 90

var ErrNoPosition = errors.New("no position to render")

type Options struct {
	// Flip draws the board from Black's side.
	Flip bool
}

type Renderer struct {
	squareSize int
	margin     int
	pieces     *pieceCache
}

func NewRenderer(squareSize int) *Renderer {
	if squareSize <= 0 {
		squareSize = DefaultSquareSize
	}
	return &Renderer{
		squareSize: squareSize,
		margin:     max(16, squareSize/4),
		pieces:     newPieceCache(),
	}
}

// RenderFEN parses fen and renders it from White's side.
func (r *Renderer) RenderFEN(ctx context.Context, fen string) ([]byte, error) {
	pos, err := board.FromFEN(fen)
	if err != nil {
		return nil, err
	}
	return r.RenderPNG(ctx, pos, Options{})
}

func (r *Renderer) RenderPNG(ctx context.Context, pos *board.Position, opts Options) ([]byte, error) {
	b := pos.Board()
	if b == nil {
		return nil, ErrNoPosition
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boardSize := r.squareSize * 8
	total := boardSize + r.margin*2
	origin := image.Point{X: r.margin, Y: r.margin}

	img := image.NewRGBA(image.Rect(0, 0, total, total))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, imagedraw.Src)

	r.drawSquares(img, origin, opts.Flip)
	if err := r.drawPieces(img, b, origin, opts.Flip); err != nil {
		return nil, err
	}
	r.drawCoordinates(img, origin, opts.Flip)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	frameColor      = color.RGBA{49, 46, 43, 255}
	coordinateColor = color.RGBA{222, 222, 222, 255}
)

// cell maps a board square to its column and row on the image.
func cell(sq nchess.Square, flip bool) (col, row int) {
	col = int(sq.File())
	row = 7 - int(sq.Rank())
	if flip {
		col, row = 7-col, 7-row
	}
	return col, row
}

func (r *Renderer) squareRect(sq nchess.Square, origin image.Point, flip bool) image.Rectangle {
	col, row := cell(sq, flip)
	x := origin.X + col*r.squareSize
	y := origin.Y + row*r.squareSize
	return image.Rect(x, y, x+r.squareSize, y+r.squareSize)
}

func (r *Renderer) drawSquares(dst imagedraw.Image, origin image.Point, flip bool) {
	for i := 0; i < 64; i++ {
		sq := nchess.Square(i)
		clr := lightSquare
		if (int(sq.File())+int(sq.Rank()))%2 == 0 {
			clr = darkSquare
		}
		imagedraw.Draw(dst, r.squareRect(sq, origin, flip), image.NewUniform(clr), image.Point{}, imagedraw.Src)
	}
}

func (r *Renderer) drawPieces(dst imagedraw.Image, b *nchess.Board, origin image.Point, flip bool) error {
	for sq, piece := range b.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := r.pieces.get(piece, r.squareSize)
		if err != nil {
			return err
		}
		rect := r.squareRect(sq, origin, flip)
		imagedraw.Draw(dst, rect, img, image.Point{}, imagedraw.Over)
	}
	return nil
}

func (r *Renderer) drawCoordinates(dst imagedraw.Image, origin image.Point, flip bool) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(coordinateColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + 8*r.squareSize

	for i := 0; i < 8; i++ {
		file := nchess.File(i)
		rank := nchess.Rank(i)
		col, _ := cell(nchess.NewSquare(file, nchess.Rank1), flip)
		_, row := cell(nchess.NewSquare(nchess.FileA, rank), flip)

		fileCenter := origin.X + col*r.squareSize + r.squareSize/2
		drawCentered(drawer, file.String(), fileCenter, boardEnd+(r.margin+ascent)/2)

		rankCenter := origin.Y + row*r.squareSize + r.squareSize/2
		drawCentered(drawer, rank.String(), origin.X-r.margin/2, rankCenter+ascent/2)
	}
}

func drawCentered(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
