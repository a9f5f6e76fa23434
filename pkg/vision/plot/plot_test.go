package plot

import (
	"image"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/zoeyai/subimage/internal/logger"
	"github.com/zoeyai/subimage/pkg/vision/cv"
	"github.com/zoeyai/subimage/pkg/vision/grid"
)

func sampleResult(t *testing.T) *cv.Result {
	t.Helper()
	rng := rand.New(rand.NewPCG(3, 4))
	data := make([]float64, 40*64)
	for i := range data {
		data[i] = rng.Float64()
	}
	search := grid.MustFromData(40, 64, data)
	tmpl, err := search.Slice(image.Rect(20, 10, 36, 22))
	if err != nil {
		t.Fatal(err)
	}
	res, err := cv.NewMatcher(cv.WithLogger(logger.Discard)).LocateGrid(search, tmpl)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestRenderLayout(t *testing.T) {
	res := sampleResult(t)
	opts := DefaultOptions()

	img, err := Render(res, opts)
	if err != nil {
		t.Fatalf("Render 失败: %v", err)
	}
	wantW := 3*opts.PanelSize + 4*opts.Margin
	if img.Bounds().Dx() != wantW {
		t.Errorf("宽度 = %d, want %d", img.Bounds().Dx(), wantW)
	}
	if img.Bounds().Dy() <= opts.PanelSize {
		t.Errorf("高度 %d 应大于面板尺寸 %d", img.Bounds().Dy(), opts.PanelSize)
	}

	// 第二个面板的匹配框左上角应为红色
	lineHeight := int(opts.FontSize*1.4 + 0.5)
	titleHeight := 2*lineHeight + opts.Margin/2
	left := opts.Margin + opts.PanelSize + opts.Margin
	box := image.Rect(left, opts.Margin+titleHeight, left+opts.PanelSize, opts.Margin+titleHeight+opts.PanelSize)
	target, scale := fit(res.Search.Bounds(), box)
	px := target.Min.X + int(float64(res.Point.X)*scale)
	py := target.Min.Y + int(float64(res.Point.Y)*scale)
	if got := img.RGBAAt(px, py); got != markColor {
		t.Errorf("匹配框 (%d, %d) 颜色 = %v, want %v", px, py, got, markColor)
	}

	// 第三个面板的峰值圆最右点
	left = opts.Margin + 2*(opts.PanelSize+opts.Margin)
	box = image.Rect(left, opts.Margin+titleHeight, left+opts.PanelSize, opts.Margin+titleHeight+opts.PanelSize)
	target, scale = fit(res.Surface.Grid().Bounds(), box)
	cx := target.Min.X + int((float64(res.Point.X)+0.5)*scale)
	cy := target.Min.Y + int((float64(res.Point.Y)+0.5)*scale)
	if got := img.RGBAAt(cx+10, cy); got != markColor {
		t.Errorf("峰值圆 (%d, %d) 颜色 = %v, want %v", cx+10, cy, got, markColor)
	}

	// 第三个面板有两行标题（第二行为找到的位置）
	for line := 0; line < 2; line++ {
		rows := image.Rect(left, opts.Margin+line*lineHeight, left+opts.PanelSize, opts.Margin+(line+1)*lineHeight)
		if !hasInk(img, rows) {
			t.Errorf("第 %d 行标题区域 %v 没有文字", line+1, rows)
		}
	}
}

// hasInk 区域内是否存在非背景像素
func hasInk(img *image.RGBA, r image.Rectangle) bool {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y) != background {
				return true
			}
		}
	}
	return false
}

func TestRenderRejectsEmpty(t *testing.T) {
	if _, err := Render(nil, DefaultOptions()); err == nil {
		t.Error("空结果应报错")
	}
	if _, err := Render(&cv.Result{}, DefaultOptions()); err == nil {
		t.Error("缺少网格的结果应报错")
	}
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "match.png")
	if err := SavePNG(sampleResult(t), path, Options{}); err != nil {
		t.Fatalf("SavePNG 失败: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Errorf("输出不是有效 PNG: %v", err)
	}
}

func TestFit(t *testing.T) {
	r, scale := fit(image.Rect(0, 0, 100, 50), image.Rect(10, 10, 210, 210))
	if scale != 2 {
		t.Errorf("scale = %v, want 2", scale)
	}
	if r != image.Rect(10, 60, 210, 160) {
		t.Errorf("目标区域 = %v", r)
	}
}

func TestViridis(t *testing.T) {
	if Viridis(-1) != viridis[0] || Viridis(2) != viridis[len(viridis)-1] {
		t.Error("越界值应取两端颜色")
	}
	if Viridis(0.5) != viridis[2] {
		t.Errorf("Viridis(0.5) = %v, want %v", Viridis(0.5), viridis[2])
	}
	img := Colorize(grid.MustFromData(1, 2, []float64{-3, 5}))
	if img.RGBAAt(0, 0) != viridis[0] || img.RGBAAt(1, 0) != viridis[4] {
		t.Errorf("Colorize 端点颜色错误: %v %v", img.RGBAAt(0, 0), img.RGBAAt(1, 0))
	}
}
