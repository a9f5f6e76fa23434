// Package grid 提供灰度像素网格
//
// Grid 是按行存储的 float64 二维网格，灰度值范围 [0, 1]，
// 底层使用 gonum 的 mat.Dense，可直接参与矩阵运算。
package grid

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrEmpty 网格为空
var ErrEmpty = errors.New("网格为空")

// Grid 灰度像素网格
type Grid struct {
	rows  int
	cols  int
	data  []float64
	dense *mat.Dense
}

// New 创建 rows x cols 的零值网格
func New(rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmpty, cols, rows)
	}
	return wrap(rows, cols, make([]float64, rows*cols)), nil
}

// FromData 使用行优先数据创建网格，数据被直接引用而非复制
func FromData(rows, cols int, data []float64) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmpty, cols, rows)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("数据长度 %d 与尺寸 %dx%d 不符", len(data), cols, rows)
	}
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("第 %d 个像素不是有限值: %v", i, v)
		}
	}
	return wrap(rows, cols, data), nil
}

// MustFromData 同 FromData，出错时 panic
func MustFromData(rows, cols int, data []float64) *Grid {
	g, err := FromData(rows, cols, data)
	if err != nil {
		panic(err)
	}
	return g
}

func wrap(rows, cols int, data []float64) *Grid {
	return &Grid{
		rows:  rows,
		cols:  cols,
		data:  data,
		dense: mat.NewDense(rows, cols, data),
	}
}

// Dims 返回 (rows, cols)
func (g *Grid) Dims() (int, int) {
	return g.rows, g.cols
}

// Rows 行数（图像高度）
func (g *Grid) Rows() int { return g.rows }

// Cols 列数（图像宽度）
func (g *Grid) Cols() int { return g.cols }

// Bounds 以图像坐标返回网格范围
func (g *Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.cols, g.rows)
}

// At 返回 (row, col) 处的值
func (g *Grid) At(row, col int) float64 {
	return g.data[row*g.cols+col]
}

// Set 设置 (row, col) 处的值
func (g *Grid) Set(row, col int, v float64) {
	g.data[row*g.cols+col] = v
}

// Data 返回行优先的底层数据，修改会反映到网格
func (g *Grid) Data() []float64 {
	return g.data
}

// Matrix 返回底层 gonum 矩阵
func (g *Grid) Matrix() *mat.Dense {
	return g.dense
}

// Clone 深拷贝
func (g *Grid) Clone() *Grid {
	data := make([]float64, len(g.data))
	copy(data, g.data)
	return wrap(g.rows, g.cols, data)
}

// Map 对每个像素应用 fn，返回新网格
func (g *Grid) Map(fn func(float64) float64) *Grid {
	out := mat.NewDense(g.rows, g.cols, nil)
	out.Apply(func(_, _ int, v float64) float64 { return fn(v) }, g.dense)
	return wrap(g.rows, g.cols, out.RawMatrix().Data)
}

// Slice 复制图像坐标矩形 r 覆盖的区域
// 行范围 [r.Min.Y, r.Max.Y)，列范围 [r.Min.X, r.Max.X)
func (g *Grid) Slice(r image.Rectangle) (*Grid, error) {
	if r.Empty() {
		return nil, fmt.Errorf("%w: 区域 %v", ErrEmpty, r)
	}
	if !r.In(g.Bounds()) {
		return nil, fmt.Errorf("区域 %v 超出网格范围 %v", r, g.Bounds())
	}
	view := g.dense.Slice(r.Min.Y, r.Max.Y, r.Min.X, r.Max.X)
	out := mat.DenseCopyOf(view)
	return wrap(r.Dy(), r.Dx(), out.RawMatrix().Data), nil
}

// Paste 把 src 写入 (row, col) 开始的位置，超出部分被裁掉
func (g *Grid) Paste(src *Grid, row, col int) {
	for r := 0; r < src.rows; r++ {
		dr := row + r
		if dr < 0 || dr >= g.rows {
			continue
		}
		for c := 0; c < src.cols; c++ {
			dc := col + c
			if dc < 0 || dc >= g.cols {
				continue
			}
			g.data[dr*g.cols+dc] = src.data[r*src.cols+c]
		}
	}
}

// MinMax 返回最小值和最大值
func (g *Grid) MinMax() (float64, float64) {
	return mat.Min(g.dense), mat.Max(g.dense)
}
