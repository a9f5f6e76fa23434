package cv

import (
	"fmt"
	"image"

	"github.com/zoeyai/subimage/pkg/vision/grid"
	"github.com/zoeyai/subimage/pkg/vision/ncc"
)

// Point 表示二维坐标点，原点在左上角，X 向右，Y 向下
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Region 搜索图中的矩形区域，右下角不包含在内
type Region struct {
	TopLeft     Point `json:"top_left"`
	BottomRight Point `json:"bottom_right"`
}

// NewRegion 由左上角 (x0, y0) 与右下角 (x1, y1) 创建区域
func NewRegion(x0, y0, x1, y1 int) Region {
	return Region{
		TopLeft:     Point{X: x0, Y: y0},
		BottomRight: Point{X: x1, Y: y1},
	}
}

// Rect 转换为 image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rectangle{
		Min: image.Point{X: r.TopLeft.X, Y: r.TopLeft.Y},
		Max: image.Point{X: r.BottomRight.X, Y: r.BottomRight.Y},
	}
}

// Width 区域宽度
func (r Region) Width() int { return r.BottomRight.X - r.TopLeft.X }

// Height 区域高度
func (r Region) Height() int { return r.BottomRight.Y - r.TopLeft.Y }

// Validate 检查角点顺序以及区域是否位于 bounds 内
func (r Region) Validate(bounds image.Rectangle) error {
	if r.TopLeft.X >= r.BottomRight.X || r.TopLeft.Y >= r.BottomRight.Y {
		return &GeometryError{
			Reason: fmt.Sprintf("区域角点顺序错误: 左上 %v, 右下 %v", r.TopLeft, r.BottomRight),
		}
	}
	if !r.Rect().In(bounds) {
		return &GeometryError{
			Reason: fmt.Sprintf("区域 %v-%v 超出搜索图范围 %dx%d",
				r.TopLeft, r.BottomRight, bounds.Dx(), bounds.Dy()),
		}
	}
	return nil
}

// Rectangle 表示矩形区域（四个角点）
type Rectangle struct {
	TopLeft     Point `json:"top_left"`
	BottomLeft  Point `json:"bottom_left"`
	BottomRight Point `json:"bottom_right"`
	TopRight    Point `json:"top_right"`
}

// Result 模板定位结果
//
// 除坐标外还携带相关面与两张灰度网格，供诊断绘图使用。
type Result struct {
	// Point 匹配窗口左上角 (x=列, y=行)
	Point Point `json:"point"`
	// Center 匹配窗口中心
	Center Point `json:"center"`
	// Rectangle 匹配窗口四个角点
	Rectangle Rectangle `json:"rectangle"`
	// Score 峰值得分 [-1, 1]，不做阈值判断
	Score float64 `json:"score"`
	// Time 耗时（毫秒）
	Time float64 `json:"time,omitempty"`

	Surface  *ncc.Surface `json:"-"`
	Search   *grid.Grid   `json:"-"`
	Template *grid.Grid   `json:"-"`
}

// XY 返回 (x, y)
func (r *Result) XY() (int, int) {
	return r.Point.X, r.Point.Y
}

// newResult 由峰值的 (row, col) 构造结果
func newResult(row, col int, score float64, surface *ncc.Surface, search, tmpl *grid.Grid) *Result {
	h, w := tmpl.Dims()
	x, y := col, row
	return &Result{
		Point:  Point{X: x, Y: y},
		Center: Point{X: x + w/2, Y: y + h/2},
		// 四个角点: 左上 -> 左下 -> 右下 -> 右上
		Rectangle: Rectangle{
			TopLeft:     Point{X: x, Y: y},
			BottomLeft:  Point{X: x, Y: y + h},
			BottomRight: Point{X: x + w, Y: y + h},
			TopRight:    Point{X: x + w, Y: y},
		},
		Score:    score,
		Surface:  surface,
		Search:   search,
		Template: tmpl,
	}
}
