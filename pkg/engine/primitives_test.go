package engine

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// circleHalfWidth is the half width of row y of a circle rasterised by pixel
// centres lying within R+0.5 of the centre
func circleHalfWidth(radius, y int) int {
	r := float64(radius) + 0.5
	return int(math.Floor(math.Sqrt(r*r - float64(y*y))))
}

func TestEllipseHalfWidthsMatchCircle(t *testing.T) {
	for _, radius := range []int{1, 2, 16, 127, 128, 400} {
		t.Run(fmt.Sprint(radius), func(t *testing.T) {
			hw := ellipseHalfWidths(radius, radius)
			require.Len(t, hw, radius+1)
			assert.Equal(t, radius, hw[0])
			for y := 0; y <= radius; y++ {
				assert.InDelta(t, circleHalfWidth(radius, y), hw[y], 1, "row %d", y)
				if y > 0 {
					assert.LessOrEqual(t, hw[y], hw[y-1], "row %d widens", y)
				}
			}
		})
	}
}

func TestEllipseHalfWidthsAreSymmetricInAxes(t *testing.T) {
	// a tall ellipse is the transpose of the wide one
	wide := ellipseHalfWidths(20, 8)
	tall := ellipseHalfWidths(8, 20)
	assert.Equal(t, 20, wide[0])
	assert.Equal(t, 8, tall[0])
	for y := 0; y <= 8; y++ {
		assert.GreaterOrEqual(t, wide[y], 0)
	}
	for y := 0; y <= 20; y++ {
		assert.LessOrEqual(t, tall[y], 8)
	}
}

func TestCircleFillRowsMatchHalfWidths(t *testing.T) {
	r, dev := newTestRenderer(t, 48, 48)
	require.NoError(t, r.BeginFrame(0))
	const cx, cy, radius = 24, 24, 16
	r.DrawCircleFill(image.Pt(cx, cy), radius, red)
	img := frontPixels(t, r, dev, 0)

	hw := ellipseHalfWidths(radius, radius)
	for dy := -radius; dy <= radius; dy++ {
		w := hw[int(math.Abs(float64(dy)))]
		row := 0
		for x := 0; x < 48; x++ {
			if img.RGBAAt(x, cy+dy) == red {
				row++
			}
		}
		assert.Equal(t, 2*w+1, row, "row %d", dy)
		assert.Equal(t, red, img.RGBAAt(cx-w, cy+dy))
		assert.Equal(t, red, img.RGBAAt(cx+w, cy+dy))
	}
	assert.Equal(t, black, img.RGBAAt(cx, cy-radius-1))
	assert.Equal(t, black, img.RGBAAt(cx, cy+radius+1))
}

func TestCircleOutlineIsHollow(t *testing.T) {
	r, dev := newTestRenderer(t, 40, 40)
	require.NoError(t, r.BeginFrame(0))
	r.DrawCircle(image.Pt(20, 20), 8, red)
	img := frontPixels(t, r, dev, 0)

	assert.Equal(t, black, img.RGBAAt(20, 20))
	for _, p := range []image.Point{{12, 20}, {28, 20}, {20, 12}, {20, 28}} {
		assert.Equal(t, red, img.RGBAAt(p.X, p.Y), "%v", p)
	}
	assert.Equal(t, black, img.RGBAAt(11, 20))
	assert.Equal(t, black, img.RGBAAt(29, 20))
}

func TestEllipseInverseFillCoversCorners(t *testing.T) {
	r, dev := newTestRenderer(t, 40, 40)
	require.NoError(t, r.BeginFrame(0))
	r.DrawEllipseInverseFill(image.Pt(20, 20), 8, 8, red)
	img := frontPixels(t, r, dev, 0)

	assert.Equal(t, black, img.RGBAAt(20, 20))
	assert.Equal(t, black, img.RGBAAt(12, 20), "the ellipse itself stays clear")
	assert.Equal(t, red, img.RGBAAt(12, 12))
	assert.Equal(t, red, img.RGBAAt(28, 28))
	assert.Equal(t, black, img.RGBAAt(11, 11), "nothing outside the bounding box")
}

func TestHugeEllipseDegradesToRect(t *testing.T) {
	r, dev := newTestRenderer(t, 32, 32)
	require.NoError(t, r.BeginFrame(0))
	r.DrawEllipseFill(image.Pt(16, 16), maxEllipseRadius, 1, red)
	img := frontPixels(t, r, dev, 0)

	for x := 0; x < 32; x++ {
		assert.Equal(t, red, img.RGBAAt(x, 15))
		assert.Equal(t, red, img.RGBAAt(x, 17))
	}
	assert.Equal(t, black, img.RGBAAt(0, 14))
}

func TestRectFillCoversExactPixels(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	r.DrawRectFill(R(2, 3, 4, 5), red)
	r.DrawRectFill(R(10, 1, 5, 1), blue)
	r.DrawRectFill(R(1, 10, 1, 4), blue)
	img := frontPixels(t, r, dev, 0)

	assert.Equal(t, 20, countColor(img, red))
	assert.Equal(t, red, img.RGBAAt(2, 3))
	assert.Equal(t, red, img.RGBAAt(5, 7))
	assert.Equal(t, black, img.RGBAAt(6, 7))
	assert.Equal(t, black, img.RGBAAt(5, 8))

	assert.Equal(t, 9, countColor(img, blue), "one pixel high and wide runs")
	assert.Equal(t, blue, img.RGBAAt(14, 1))
	assert.Equal(t, blue, img.RGBAAt(1, 13))
}

func TestRectOutline(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	r.DrawRect(R(1, 1, 6, 4), red)
	img := frontPixels(t, r, dev, 0)

	for _, p := range []image.Point{{1, 1}, {6, 1}, {1, 4}, {6, 4}, {3, 1}, {1, 2}} {
		assert.Equal(t, red, img.RGBAAt(p.X, p.Y), "%v", p)
	}
	assert.Equal(t, black, img.RGBAAt(3, 2))
	assert.Equal(t, 16, countColor(img, red))
}

func TestThickRectFillsWhenBordersMeet(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	r.DrawRectThick(R(0, 0, 4, 4), 2, red)
	img := frontPixels(t, r, dev, 0)
	assert.Equal(t, 16, countColor(img, red))
}

func TestAxisLinesIncludeBothEnds(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	r.DrawLine(9, 3, 2, 3, red)
	r.DrawLine(12, 2, 12, 8, blue)
	img := frontPixels(t, r, dev, 0)

	for x := 2; x <= 9; x++ {
		assert.Equal(t, red, img.RGBAAt(x, 3), "x %d", x)
	}
	assert.Equal(t, black, img.RGBAAt(1, 3))
	assert.Equal(t, black, img.RGBAAt(10, 3))
	assert.Equal(t, 8, countColor(img, red))

	for y := 2; y <= 8; y++ {
		assert.Equal(t, blue, img.RGBAAt(12, y), "y %d", y)
	}
	assert.Equal(t, 7, countColor(img, blue))
}

func TestLineStripSharesPoints(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	r.SetAlpha(128)
	r.DrawLineStrip([]image.Point{{1, 1}, {6, 1}, {6, 6}}, red)
	img := frontPixels(t, r, dev, 0)

	// a pixel drawn twice at half alpha would come out brighter
	corner := img.RGBAAt(6, 1)
	assert.Equal(t, img.RGBAAt(3, 1), corner)
	assert.Equal(t, img.RGBAAt(6, 3), corner)
}

func TestLineRespectsClip(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 8)
	require.NoError(t, r.BeginFrame(0))
	r.SetClip(R(0, 0, 5, 5))
	r.DrawLine(0, 0, 10, 0, red)
	r.DrawLine(0, 0, 10, 6, red)
	img := frontPixels(t, r, dev, 0)

	for y := 0; y < 8; y++ {
		for x := 5; x < 16; x++ {
			assert.Equal(t, black, img.RGBAAt(x, y), "(%d,%d)", x, y)
		}
	}
	assert.Equal(t, red, img.RGBAAt(4, 0))
}

func TestSlopedLineEndpoints(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	r.DrawLine(1, 1, 11, 6, red)
	img := frontPixels(t, r, dev, 0)

	assert.Equal(t, red, img.RGBAAt(1, 1))
	assert.Equal(t, red, img.RGBAAt(11, 6))
	assert.Equal(t, black, img.RGBAAt(0, 1))
	assert.Equal(t, black, img.RGBAAt(12, 6))
	// one pixel per column along the major axis
	assert.Equal(t, 11, countColor(img, red))
}

func TestTriangleFillSurvivesEitherWinding(t *testing.T) {
	for _, pts := range [][3]image.Point{
		{{2, 2}, {12, 2}, {2, 12}},
		{{2, 2}, {2, 12}, {12, 2}},
	} {
		r, dev := newTestRenderer(t, 16, 16)
		require.NoError(t, r.BeginFrame(0))
		r.DrawTriangleFill(pts[0], pts[1], pts[2], red)
		img := frontPixels(t, r, dev, 0)
		assert.Equal(t, red, img.RGBAAt(4, 4))
		assert.Equal(t, black, img.RGBAAt(12, 12))
	}
}

func TestRotatedRectZeroAngleIsPlainFill(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	r.DrawRectFillRotated(R(2, 2, 4, 4), image.Pt(2, 2), 360, red)
	img := frontPixels(t, r, dev, 0)
	assert.Equal(t, 16, countColor(img, red))
}

func TestRotatedRectQuarterTurn(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	// 4x2 rotated about its top-left corner becomes 2x4 to the left of it
	r.DrawRectFillRotated(R(8, 4, 4, 2), image.Pt(0, 0), 90, red)
	img := frontPixels(t, r, dev, 0)
	assert.Equal(t, 8, countColor(img, red))
	assert.Equal(t, red, img.RGBAAt(6, 4))
	assert.Equal(t, red, img.RGBAAt(7, 7))
	assert.Equal(t, black, img.RGBAAt(8, 4))
}

func TestNineSlice(t *testing.T) {
	r, dev := newTestRenderer(t, 32, 32)
	atlas := image.NewRGBA(image.Rect(0, 0, 12, 4))
	for x := 0; x < 12; x++ {
		for y := 0; y < 4; y++ {
			c := red
			if x >= 4 && x < 8 {
				c = blue
			}
			atlas.SetRGBA(x, y, c)
		}
	}
	tex, err := r.NewTexture(atlas)
	require.NoError(t, err)
	corner := SpriteFromRect(R(0, 0, 4, 4))
	fill := SpriteFromRect(R(4, 0, 4, 4))
	ns := NineSlice{
		TopLeft: corner, Top: fill, TopRight: corner,
		Left: fill, Middle: fill, Right: fill,
		BottomLeft: corner, Bottom: fill, BottomRight: corner,
	}

	require.NoError(t, r.BeginFrame(0))
	r.SetTexture(tex)

	r.DrawNineSlice(R(0, 0, 7, 20), ns)
	r.DrawNineSlice(R(0, 0, 20, 7), ns)
	assert.Zero(t, r.batch.nv, "too small for two corners draws nothing")

	r.DrawNineSlice(R(2, 2, 10, 10), ns)
	img := frontPixels(t, r, dev, 0)
	assert.Equal(t, red, img.RGBAAt(2, 2))
	assert.Equal(t, red, img.RGBAAt(11, 11))
	assert.Equal(t, blue, img.RGBAAt(6, 2), "edge tile")
	assert.Equal(t, blue, img.RGBAAt(7, 7), "middle tile cut to fit")
	assert.Equal(t, black, img.RGBAAt(12, 7))
	assert.Equal(t, 100, countColor(img, red)+countColor(img, blue))
}

func TestSpriteFlipAndSheetBounds(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	atlas := image.NewRGBA(image.Rect(0, 0, 4, 2))
	atlas.SetRGBA(0, 0, red)
	atlas.SetRGBA(1, 0, blue)
	atlas.SetRGBA(2, 0, blue)
	atlas.SetRGBA(3, 0, blue)
	tex, err := r.NewTexture(atlas)
	require.NoError(t, err)
	sheet := NewSpriteSheet(tex, 2, 2)

	_, ok := sheet.Sprite(2)
	assert.False(t, ok)

	require.NoError(t, r.BeginFrame(0))
	r.DrawSprite(sheet, 0, 0, 0, 0)
	r.DrawSprite(sheet, 0, 4, 0, FlipH)
	r.DrawSprite(sheet, 5, 8, 0, 0)
	img := frontPixels(t, r, dev, 0)

	assert.Equal(t, red, img.RGBAAt(0, 0))
	assert.Equal(t, blue, img.RGBAAt(1, 0))
	assert.Equal(t, blue, img.RGBAAt(4, 0))
	assert.Equal(t, red, img.RGBAAt(5, 0))
	assert.Equal(t, black, img.RGBAAt(8, 0))
}

func TestDrawPixelBuffer(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))

	assert.Error(t, r.DrawPixelBuffer(make([]color.RGBA, 3), 2, 2, R(0, 0, 2, 2)))

	px := []color.RGBA{red, blue, blue, red}
	require.NoError(t, r.DrawPixelBuffer(px, 2, 2, R(4, 4, 4, 4)))
	img := frontPixels(t, r, dev, 0)
	assert.Equal(t, red, img.RGBAAt(4, 4))
	assert.Equal(t, blue, img.RGBAAt(7, 5))
	assert.Equal(t, red, img.RGBAAt(7, 7))
	assert.Equal(t, 16, countColor(img, red)+countColor(img, blue))
}

func TestThickLineRows(t *testing.T) {
	tests := []struct {
		name           string
		x0, y0, x1, y1 int
		thickness      int
		want           image.Rectangle
	}{
		// odd thickness keeps the centre row with one row either side
		{"three across", 2, 12, 9, 12, 3, image.Rect(2, 11, 10, 14)},
		{"two across", 2, 12, 9, 12, 2, image.Rect(2, 11, 10, 13)},
		{"four across", 2, 12, 9, 12, 4, image.Rect(2, 10, 10, 14)},
		{"three down", 4, 2, 4, 9, 3, image.Rect(3, 2, 6, 10)},
		{"three reversed", 9, 12, 2, 12, 3, image.Rect(2, 11, 10, 14)},
		{"point", 5, 5, 5, 5, 3, image.Rect(4, 4, 7, 7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dev := newTestRenderer(t, 16, 16)
			require.NoError(t, r.BeginFrame(0))
			r.DrawLineThick(tt.x0, tt.y0, tt.x1, tt.y1, tt.thickness, red)
			img := frontPixels(t, r, dev, 0)

			assert.Equal(t, tt.want.Dx()*tt.want.Dy(), countColor(img, red))
			for y := tt.want.Min.Y; y < tt.want.Max.Y; y++ {
				for x := tt.want.Min.X; x < tt.want.Max.X; x++ {
					assert.Equal(t, red, img.RGBAAt(x, y), "pixel %d,%d", x, y)
				}
			}
		})
	}
}

func TestTriangleOutline(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	r.DrawTriangle(image.Pt(2, 2), image.Pt(10, 2), image.Pt(2, 10), red)
	img := frontPixels(t, r, dev, 0)

	// 9 along the top, 8 down the diagonal, 7 up the left side
	assert.Equal(t, 24, countColor(img, red))
	for _, p := range []image.Point{{2, 2}, {10, 2}, {2, 10}, {9, 3}, {6, 6}, {2, 9}, {2, 3}} {
		assert.Equal(t, red, img.RGBAAt(p.X, p.Y), "pixel %v", p)
	}
	assert.Equal(t, black, img.RGBAAt(4, 4))
	assert.Equal(t, black, img.RGBAAt(11, 2))
}

func TestPolygonDrawsEachPixelOnce(t *testing.T) {
	r, dev := newTestRenderer(t, 16, 16)
	require.NoError(t, r.BeginFrame(0))
	half := color.RGBA{255, 0, 0, 128}
	r.DrawPolygon([]image.Point{{2, 2}, {8, 2}, {8, 8}, {2, 8}}, half)
	// too few points to close: drawn as a strip
	r.DrawPolygon([]image.Point{{1, 12}, {4, 12}}, half)
	img := frontPixels(t, r, dev, 0)

	once := img.RGBAAt(2, 2)
	assert.NotEqual(t, black, once)
	assert.Equal(t, 28, countColor(img, once), "blended pixels would differ if drawn twice")
	assert.Equal(t, 256-28, countColor(img, black))
	assert.Equal(t, once, img.RGBAAt(8, 8))
	assert.Equal(t, once, img.RGBAAt(2, 7))
	assert.Equal(t, black, img.RGBAAt(5, 5))
}
