package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	chesslib "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Flat piece icons on a 45x45 view box. FILL and STROKE are substituted per
// side before parsing.
var pieceShapes = map[chesslib.PieceType]string{
	chesslib.Pawn: `<circle cx="22.5" cy="14" r="5"/>` +
		`<path d="M14 38 L17 24 L28 24 L31 38 Z"/>`,
	chesslib.Rook: `<path d="M12 38 L12 33 L15 33 L15 18 L12 18 L12 10 L16 10 L16 13 L20 13 L20 10 L25 10 L25 13 L29 13 L29 10 L33 10 L33 18 L30 18 L30 33 L33 33 L33 38 Z"/>`,
	chesslib.Knight: `<path d="M13 38 L16 28 L13 22 L20 10 L24 8 L25 11 L32 17 L33 24 L29 25 L26 22 L24 26 L30 38 Z"/>`,
	chesslib.Bishop: `<circle cx="22.5" cy="8" r="2.5"/>` +
		`<path d="M22.5 11 L29 20 L27 30 L18 30 L16 20 Z"/>` +
		`<rect x="13" y="32" width="19" height="6"/>`,
	chesslib.Queen: `<path d="M10 14 L15 28 L17 12 L22.5 27 L28 12 L30 28 L35 14 L32 33 L13 33 Z"/>` +
		`<rect x="12" y="34" width="21" height="5"/>`,
	chesslib.King: `<path d="M21 5 L24 5 L24 8 L27 8 L27 11 L24 11 L24 15 L21 15 L21 11 L18 11 L18 8 L21 8 Z"/>` +
		`<path d="M12 22 L22.5 16 L33 22 L30 33 L15 33 Z"/>` +
		`<rect x="12" y="34" width="21" height="5"/>`,
}

func pieceSVG(piece chesslib.Piece) (string, error) {
	body, ok := pieceShapes[piece.Type()]
	if !ok {
		return "", fmt.Errorf("no icon for piece %v", piece)
	}
	fill, stroke := "#f8f8f8", "#1a1a1a"
	if piece.Color() == chesslib.Black {
		fill, stroke = "#1f1f1f", "#e0e0e0"
	}
	attrs := fmt.Sprintf(` fill="%s" stroke="%s" stroke-width="1.5"/>`, fill, stroke)
	body = strings.ReplaceAll(body, "/>", attrs)
	return `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">` + body + `</svg>`, nil
}

type pieceCacheKey struct {
	piece chesslib.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece chesslib.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	src, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
