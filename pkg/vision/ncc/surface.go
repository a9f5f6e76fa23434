package ncc

import (
	"gonum.org/v1/gonum/floats"

	"github.com/zoeyai/subimage/pkg/vision/grid"
)

// Surface 相关面，(r, c) 处为模板左上角对齐到搜索图 (r, c) 时的得分
type Surface struct {
	g *grid.Grid
}

func newSurface(rows, cols int, data []float64) (*Surface, error) {
	g, err := grid.FromData(rows, cols, data)
	if err != nil {
		return nil, err
	}
	return &Surface{g: g}, nil
}

// NewSurface 由已有网格构造相关面，供其他相关实现使用
func NewSurface(g *grid.Grid) *Surface {
	return &Surface{g: g}
}

// Dims 返回 (rows, cols)
func (s *Surface) Dims() (int, int) {
	return s.g.Dims()
}

// At 返回 (row, col) 处的得分
func (s *Surface) At(row, col int) float64 {
	return s.g.At(row, col)
}

// Grid 返回底层网格
func (s *Surface) Grid() *grid.Grid {
	return s.g
}

// ArgMax 返回最大值位置与得分
// 存在并列最大值时按行优先扫描取第一个，即行号最小、其次列号最小者。
func (s *Surface) ArgMax() (row, col int, score float64) {
	data := s.g.Data()
	idx := floats.MaxIdx(data)
	cols := s.g.Cols()
	return idx / cols, idx % cols, data[idx]
}
