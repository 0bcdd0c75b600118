package heatmap

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
)

// Bounding box covering the Brazilian territory.
const (
	minLat = -34.0
	maxLat = 6.0
	minLon = -74.0
	maxLon = -34.0
)

// Density is accumulated on a coarse grid, blurred, then upscaled to the
// requested output size.
const (
	gridSize   = 160
	blurRadius = 2
	blurPasses = 3
)

// Render rasterizes the points into a heatmap image of the given size.
func Render(points []Point, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("heatmap: invalid size %dx%d", width, height)
	}

	grid := make([]float64, gridSize*gridSize)
	for _, p := range points {
		if p.Lat < minLat || p.Lat > maxLat || p.Lon < minLon || p.Lon > maxLon {
			continue
		}
		x := int((p.Lon - minLon) / (maxLon - minLon) * float64(gridSize-1))
		y := int((maxLat - p.Lat) / (maxLat - minLat) * float64(gridSize-1))
		grid[y*gridSize+x] += float64(p.Weight)
	}

	for i := 0; i < blurPasses; i++ {
		grid = boxBlur(grid, gridSize, blurRadius)
	}

	max := 0.0
	for _, v := range grid {
		if v > max {
			max = v
		}
	}

	base := image.NewRGBA(image.Rect(0, 0, gridSize, gridSize))
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			v := 0.0
			if max > 0 {
				v = grid[y*gridSize+x] / max
			}
			base.SetRGBA(x, y, ramp(v))
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(out, out.Bounds(), base, base.Bounds(), draw.Src, nil)
	return out, nil
}

// RenderPNG renders the points and writes the PNG encoding to w.
func RenderPNG(w io.Writer, points []Point, width, height int) error {
	img, err := Render(points, width, height)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func boxBlur(grid []float64, size, radius int) []float64 {
	out := make([]float64, len(grid))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			sum, n := 0.0, 0
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					yy, xx := y+dy, x+dx
					if yy < 0 || yy >= size || xx < 0 || xx >= size {
						continue
					}
					sum += grid[yy*size+xx]
					n++
				}
			}
			out[y*size+x] = sum / float64(n)
		}
	}
	return out
}

// ramp maps normalized density to a dark-blue through red gradient. Zero
// density stays near-black so the country outline reads from the data alone.
func ramp(v float64) color.RGBA {
	v = math.Min(1, math.Max(0, v))
	switch {
	case v < 0.25:
		t := v / 0.25
		return color.RGBA{R: 0, G: uint8(80 * t), B: uint8(40 + 160*t), A: 255}
	case v < 0.5:
		t := (v - 0.25) / 0.25
		return color.RGBA{R: 0, G: uint8(80 + 175*t), B: uint8(200 - 120*t), A: 255}
	case v < 0.75:
		t := (v - 0.5) / 0.25
		return color.RGBA{R: uint8(255 * t), G: 255, B: uint8(80 - 80*t), A: 255}
	default:
		t := (v - 0.75) / 0.25
		return color.RGBA{R: 255, G: uint8(255 - 200*t), B: 0, A: 255}
	}
}
