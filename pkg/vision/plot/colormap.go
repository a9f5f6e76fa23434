package plot

import (
	"image"
	"image/color"

	"github.com/zoeyai/subimage/pkg/vision/grid"
)

// viridis 色表的采样点，按 [0, 1] 均匀分布
var viridis = []color.RGBA{
	{68, 1, 84, 255},
	{59, 82, 139, 255},
	{33, 145, 140, 255},
	{94, 201, 98, 255},
	{253, 231, 37, 255},
}

// Colorize 将网格按 [min, max] 映射到 viridis 色表
func Colorize(g *grid.Grid) *image.RGBA {
	lo, hi := g.MinMax()
	span := hi - lo
	img := image.NewRGBA(g.Bounds())
	rows, cols := g.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			t := 0.0
			if span > 0 {
				t = (g.At(r, c) - lo) / span
			}
			img.SetRGBA(c, r, Viridis(t))
		}
	}
	return img
}

// Viridis 返回 t ∈ [0, 1] 对应的颜色
func Viridis(t float64) color.RGBA {
	if t <= 0 {
		return viridis[0]
	}
	if t >= 1 {
		return viridis[len(viridis)-1]
	}
	pos := t * float64(len(viridis)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := viridis[i], viridis[i+1]
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*frac + 0.5)
	}
	return color.RGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 255}
}
