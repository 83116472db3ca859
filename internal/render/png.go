package render

import (
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	chesslib "github.com/corentings/chess/v2"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-opening-prep/internal/chess/board"
)

const (
	defaultSquareSize = 64
	boardMargin       = 24
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	lastMoveFill        = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	frameColor          = color.RGBA{40, 36, 33, 255}
	coordinateTextColor = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
)

// PNG writes a raster snapshot of each frame to a file, replacing the
// previous one.
type PNG struct {
	path       string
	squareSize int
}

func NewPNG(path string) *PNG {
	return &PNG{path: path, squareSize: defaultSquareSize}
}

func (p *PNG) Path() string { return p.path }

func (p *PNG) Render(frame Frame) error {
	img, err := p.Draw(frame)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, ".board-*.png")
	if err != nil {
		return fmt.Errorf("create board image: %w", err)
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close board image: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace board image: %w", err)
	}
	return nil
}

// Draw rasterises the frame without touching the file system.
func (p *PNG) Draw(frame Frame) (*image.RGBA, error) {
	if frame.Position == nil {
		return nil, fmt.Errorf("render: nil position")
	}
	size := p.squareSize
	if size <= 0 {
		size = defaultSquareSize
	}
	total := size*8 + boardMargin*2
	img := image.NewRGBA(image.Rect(0, 0, total, total))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(frameColor), image.Point{}, imagedraw.Src)

	g := geometry{size: size, origin: image.Pt(boardMargin, boardMargin), orientation: frame.Orientation}

	drawSquares(img, g)
	if frame.LastMove != nil {
		drawSquareOverlay(img, g.squareRect(frame.LastMove.S1()), lastMoveFill)
		drawSquareOverlay(img, g.squareRect(frame.LastMove.S2()), lastMoveFill)
	}
	if err := drawPieces(img, frame.Position.Board(), g); err != nil {
		return nil, err
	}
	for _, h := range frame.Highlights {
		if h.Move == nil {
			continue
		}
		drawArrow(img, g, h.Move.S1(), h.Move.S2(), h.Color)
	}
	drawCoordinates(img, g)
	return img, nil
}

type geometry struct {
	size        int
	origin      image.Point
	orientation board.Color
}

func (g geometry) squareRect(sq chesslib.Square) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if g.orientation == board.Black {
		col = 7 - col
		row = 7 - row
	}
	x := g.origin.X + col*g.size
	y := g.origin.Y + row*g.size
	return image.Rect(x, y, x+g.size, y+g.size)
}

func (g geometry) center(sq chesslib.Square) (float64, float64) {
	r := g.squareRect(sq)
	return float64(r.Min.X) + float64(g.size)/2, float64(r.Min.Y) + float64(g.size)/2
}

func squareColor(sq chesslib.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func drawSquares(dst *image.RGBA, g geometry) {
	for _, rank := range allRanks {
		for _, file := range allFiles {
			sq := chesslib.NewSquare(file, rank)
			imagedraw.Draw(dst, g.squareRect(sq), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}
}

func drawSquareOverlay(dst *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(dst, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawPieces(dst *image.RGBA, b *chesslib.Board, g geometry) error {
	for sq, piece := range b.SquareMap() {
		if piece == chesslib.NoPiece {
			continue
		}
		icon, err := renderPieceImage(piece, g.size)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, g.squareRect(sq), icon, image.Point{}, imagedraw.Over)
	}
	return nil
}

// drawArrow fills a shaft and a triangular head from the centre of from to
// the centre of to.
func drawArrow(dst *image.RGBA, g geometry, from, to chesslib.Square, clr color.NRGBA) {
	if from == to {
		return
	}
	sx, sy := g.center(from)
	ex, ey := g.center(to)
	dx, dy := ex-sx, ey-sy
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	sq := float64(g.size)
	baseLength := length - sq*0.45
	if baseLength < sq*0.35 {
		baseLength = length * 0.6
	}
	halfWidth := sq * 0.12
	headHalf := sq * 0.26
	bx, by := sx+dirX*baseLength, sy+dirY*baseLength

	bounds := dst.Bounds()
	scanner := rasterx.NewScannerGV(bounds.Dx(), bounds.Dy(), dst, bounds)
	filler := rasterx.NewFiller(bounds.Dx(), bounds.Dy(), scanner)
	filler.SetColor(clr)

	filler.Start(rasterx.ToFixedP(sx-perpX*halfWidth, sy-perpY*halfWidth))
	filler.Line(rasterx.ToFixedP(bx-perpX*halfWidth, by-perpY*halfWidth))
	filler.Line(rasterx.ToFixedP(bx-perpX*headHalf, by-perpY*headHalf))
	filler.Line(rasterx.ToFixedP(ex, ey))
	filler.Line(rasterx.ToFixedP(bx+perpX*headHalf, by+perpY*headHalf))
	filler.Line(rasterx.ToFixedP(bx+perpX*halfWidth, by+perpY*halfWidth))
	filler.Line(rasterx.ToFixedP(sx+perpX*halfWidth, sy+perpY*halfWidth))
	filler.Stop(true)
	filler.Draw()
	filler.Clear()
}

func drawCoordinates(dst *image.RGBA, g geometry) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	files, ranks := orientedAxes(g.orientation)

	for row, rank := range ranks {
		y := g.origin.Y + row*g.size + g.size/2 + ascent/2
		drawCenteredText(drawer, rank.String(), g.origin.X/2, y)
	}
	bottom := g.origin.Y + 8*g.size
	for col, file := range files {
		x := g.origin.X + col*g.size + g.size/2
		drawCenteredText(drawer, file.String(), x, bottom+(boardMargin+ascent)/2)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
