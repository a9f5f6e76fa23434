// Package opencv 提供基于 gocv 的相关面计算与窗口显示
//
// 需要本机安装 OpenCV。纯 Go 的实现见 ncc 包。
package opencv

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/zoeyai/subimage/pkg/vision/grid"
	"github.com/zoeyai/subimage/pkg/vision/ncc"
)

// Correlator 使用 OpenCV TM_CCOEFF_NORMED 计算相关面
type Correlator struct{}

// Correlate 实现 cv.Correlator
func (Correlator) Correlate(search, tmpl *grid.Grid) (*ncc.Surface, error) {
	if search == nil || tmpl == nil {
		return nil, fmt.Errorf("%w: 搜索图或模板为空", grid.ErrEmpty)
	}
	if tmpl.Rows() > search.Rows() || tmpl.Cols() > search.Cols() {
		return nil, fmt.Errorf("%w: 模板 %dx%d, 搜索图 %dx%d", ncc.ErrTemplateTooLarge,
			tmpl.Cols(), tmpl.Rows(), search.Cols(), search.Rows())
	}

	src, err := GridToMat(search)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	tpl, err := GridToMat(tmpl)
	if err != nil {
		return nil, err
	}
	defer tpl.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(src, tpl, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return nil, fmt.Errorf("OpenCV 模板匹配失败")
	}

	rows, cols := result.Rows(), result.Cols()
	data := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := float64(result.GetFloatAt(r, c))
			// 纯色窗口在 OpenCV 中可能得到非有限值
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			data[r*cols+c] = v
		}
	}

	g, err := grid.FromData(rows, cols, data)
	if err != nil {
		return nil, err
	}
	return ncc.NewSurface(g), nil
}

// GridToMat 将灰度网格转换为单通道 CV_32F 的 gocv.Mat
func GridToMat(g *grid.Grid) (gocv.Mat, error) {
	rows, cols := g.Dims()
	buf := make([]byte, 4*rows*cols)
	for i, v := range g.Data() {
		binary.NativeEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
	mat, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV32F, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("网格转换失败: %w", err)
	}
	return mat, nil
}

// DisplayMat 将图像转换为 IMShow 可直接显示的 BGR Mat
//
// ImageToMatRGB 的结果已经是 BGR 顺序，不需要再转换。
func DisplayMat(img image.Image) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("图像转换失败: %w", err)
	}
	return mat, nil
}

// Show 在 OpenCV 窗口中显示图像，按任意键关闭
func Show(img image.Image, title string) error {
	mat, err := DisplayMat(img)
	if err != nil {
		return err
	}
	defer mat.Close()

	window := gocv.NewWindow(title)
	defer window.Close()
	window.IMShow(mat)
	window.WaitKey(0)
	return nil
}
