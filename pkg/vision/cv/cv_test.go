package cv

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/zoeyai/subimage/internal/logger"
	"github.com/zoeyai/subimage/pkg/vision/grid"
	"github.com/zoeyai/subimage/pkg/vision/ncc"
)

// getTestDataDir 获取测试资源目录
func getTestDataDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "testdata")
}

// randomGray 生成可复现的随机灰度图
func randomGray(w, h int, seed uint64) *image.Gray {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.IntN(256))
	}
	return img
}

// writePNG 保存图像到临时目录并返回路径
func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("编码 %s 失败: %v", name, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("写入 %s 失败: %v", name, err)
	}
	return path
}

// fixture 搜索图与从 (ox, oy) 裁出的模板文件
func fixture(t *testing.T, ox, oy, tw, th int) (searchPath, templatePath string) {
	t.Helper()
	dir := t.TempDir()
	search := randomGray(80, 60, 42)
	tmpl := search.SubImage(image.Rect(ox, oy, ox+tw, oy+th))
	return writePNG(t, dir, "search.png", search), writePNG(t, dir, "template.png", tmpl)
}

func quietMatcher(opts ...Option) *Matcher {
	return NewMatcher(append([]Option{WithLogger(logger.Discard)}, opts...)...)
}

func TestLocateWithTemplateFile(t *testing.T) {
	searchPath, templatePath := fixture(t, 31, 17, 12, 9)

	for _, method := range []ncc.Method{ncc.Direct, ncc.FFT} {
		t.Run(method.String(), func(t *testing.T) {
			res, err := quietMatcher(WithMethod(method)).Locate(searchPath, FileSelection{Path: templatePath})
			if err != nil {
				t.Fatalf("Locate 失败: %v", err)
			}
			if x, y := res.XY(); x != 31 || y != 17 {
				t.Errorf("位置 = (%d, %d), want (31, 17)", x, y)
			}
			if res.Score < 0.999 {
				t.Errorf("完全匹配得分过低: %v", res.Score)
			}
			rows, cols := res.Surface.Dims()
			if rows != 60-9+1 || cols != 80-12+1 {
				t.Errorf("相关面尺寸 = %dx%d, want 69x52", cols, rows)
			}
		})
	}
}

func TestLocateWithRegion(t *testing.T) {
	searchPath, _ := fixture(t, 0, 0, 1, 1)
	region := NewRegion(44, 20, 60, 33)

	res, err := quietMatcher().Locate(searchPath, RegionSelection{Region: region})
	if err != nil {
		t.Fatalf("Locate 失败: %v", err)
	}
	if res.Point != region.TopLeft {
		t.Errorf("位置 = %v, want %v", res.Point, region.TopLeft)
	}
	if res.Template.Cols() != 16 || res.Template.Rows() != 13 {
		t.Errorf("模板尺寸 = %dx%d, want 16x13", res.Template.Cols(), res.Template.Rows())
	}
	if res.Rectangle.BottomRight != region.BottomRight {
		t.Errorf("匹配区域右下角 = %v, want %v", res.Rectangle.BottomRight, region.BottomRight)
	}
	if res.Center != (Point{X: 52, Y: 26}) {
		t.Errorf("中心 = %v, want (52, 26)", res.Center)
	}
}

func TestLocateDeterministic(t *testing.T) {
	searchPath, templatePath := fixture(t, 5, 40, 20, 15)
	sel := FileSelection{Path: templatePath}

	first, err := quietMatcher().Locate(searchPath, sel)
	if err != nil {
		t.Fatal(err)
	}
	second, err := quietMatcher().Locate(searchPath, sel)
	if err != nil {
		t.Fatal(err)
	}
	if first.Point != second.Point || first.Score != second.Score {
		t.Errorf("两次结果不同: %v/%v vs %v/%v", first.Point, first.Score, second.Point, second.Score)
	}
}

func TestLocateConcurrentUse(t *testing.T) {
	searchPath, templatePath := fixture(t, 12, 3, 10, 10)
	m := quietMatcher()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := m.Locate(searchPath, FileSelection{Path: templatePath})
			if err != nil {
				errs <- err
				return
			}
			if res.Point != (Point{X: 12, Y: 3}) {
				errs <- errors.New("位置错误: " + res.Point.String())
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestLocateGridBrightnessInvariance(t *testing.T) {
	search, err := grid.FromImage(randomGray(50, 40, 7))
	if err != nil {
		t.Fatal(err)
	}
	tmpl, err := search.Slice(image.Rect(22, 9, 30, 21))
	if err != nil {
		t.Fatal(err)
	}

	m := quietMatcher()
	variants := []struct {
		name string
		fn   func(float64) float64
	}{
		{"原图", func(v float64) float64 { return v }},
		{"亮度偏移", func(v float64) float64 { return v + 0.25 }},
		{"对比度缩放", func(v float64) float64 { return v * 0.5 }},
		{"两者", func(v float64) float64 { return 2*v - 0.3 }},
	}
	for _, tc := range variants {
		t.Run(tc.name, func(t *testing.T) {
			res, err := m.LocateGrid(search.Map(tc.fn), tmpl)
			if err != nil {
				t.Fatal(err)
			}
			if res.Point != (Point{X: 22, Y: 9}) {
				t.Errorf("位置 = %v, want (22, 9)", res.Point)
			}
		})
	}
}

func TestLocateEqualSize(t *testing.T) {
	search, err := grid.FromImage(randomGray(16, 12, 9))
	if err != nil {
		t.Fatal(err)
	}
	res, err := quietMatcher().LocateGrid(search, search.Clone())
	if err != nil {
		t.Fatal(err)
	}
	rows, cols := res.Surface.Dims()
	if rows != 1 || cols != 1 {
		t.Errorf("相关面尺寸 = %dx%d, want 1x1", cols, rows)
	}
	if res.Point != (Point{}) {
		t.Errorf("位置 = %v, want (0, 0)", res.Point)
	}
}

func TestLocateMissingSearch(t *testing.T) {
	_, err := quietMatcher().Locate(filepath.Join(t.TempDir(), "none.png"), FileSelection{Path: "x.png"})
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("应返回 ErrFileNotFound, 实际 %v", err)
	}
}

func TestLocateMissingTemplateFailsFast(t *testing.T) {
	searchPath, _ := fixture(t, 0, 0, 1, 1)
	var buf bytes.Buffer
	m := NewMatcher(WithLogger(logger.New(logger.WithOutput(&buf))))

	missing := filepath.Join(t.TempDir(), "missing.png")
	_, err := m.Locate(searchPath, FileSelection{Path: missing})
	if !errors.Is(err, ErrNoTemplate) {
		t.Errorf("应返回 ErrNoTemplate, 实际 %v", err)
	}
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("应同时满足 ErrFileNotFound, 实际 %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") || !strings.Contains(buf.String(), "missing.png") {
		t.Errorf("应记录错误日志, 实际 %q", buf.String())
	}
}

func TestLocateLogsMatchEvent(t *testing.T) {
	searchPath, templatePath := fixture(t, 12, 7, 10, 8)
	var buf bytes.Buffer
	m := NewMatcher(WithLogger(logger.New(logger.WithOutput(&buf))))

	if _, err := m.Locate(searchPath, FileSelection{Path: templatePath}); err != nil {
		t.Fatalf("Locate 失败: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "| CV   | OK |") || !strings.Contains(out, "位置=(12, 7)") {
		t.Errorf("应记录匹配事件, 实际 %q", out)
	}
}

func TestLocateCorruptTemplate(t *testing.T) {
	searchPath, _ := fixture(t, 0, 0, 1, 1)
	bad := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(bad, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := quietMatcher().Locate(searchPath, FileSelection{Path: bad})
	if !errors.Is(err, ErrNoTemplate) || !errors.Is(err, grid.ErrDecode) {
		t.Errorf("应返回 ErrNoTemplate 与 ErrDecode, 实际 %v", err)
	}
}

func TestLocateInvalidGeometry(t *testing.T) {
	searchPath, _ := fixture(t, 0, 0, 1, 1)
	cases := []struct {
		name   string
		region Region
	}{
		{"角点颠倒", NewRegion(30, 30, 10, 40)},
		{"零宽度", NewRegion(10, 10, 10, 20)},
		{"超出右边界", NewRegion(70, 0, 81, 10)},
		{"负坐标", NewRegion(-1, 0, 5, 5)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := quietMatcher().Locate(searchPath, RegionSelection{Region: tc.region})
			if !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("应返回 ErrInvalidGeometry, 实际 %v", err)
			}
		})
	}
}

func TestLocateTemplateLargerThanSearch(t *testing.T) {
	search, _ := grid.New(10, 10)
	tmpl, _ := grid.New(5, 11)

	_, err := quietMatcher().LocateGrid(search, tmpl)
	var geomErr *GeometryError
	if !errors.As(err, &geomErr) {
		t.Fatalf("应返回 *GeometryError, 实际 %v", err)
	}
	if geomErr.SearchSize != [2]int{10, 10} || geomErr.TemplateSize != [2]int{11, 5} {
		t.Errorf("尺寸信息错误: %+v", geomErr)
	}
}

func TestLocateNilSelection(t *testing.T) {
	searchPath, _ := fixture(t, 0, 0, 1, 1)
	if _, err := quietMatcher().Locate(searchPath, nil); !errors.Is(err, ErrNoTemplate) {
		t.Errorf("应返回 ErrNoTemplate, 实际 %v", err)
	}
}

func intp(v int) *int { return &v }

func TestResolveSelection(t *testing.T) {
	full := Corners{TopLeftX: intp(1), TopLeftY: intp(2), BottomRightX: intp(30), BottomRightY: intp(40)}

	cases := []struct {
		name     string
		corners  Corners
		template string
		want     Selection
		wantErr  error
		wantWarn bool
	}{
		{"只有区域", full, "", RegionSelection{Region: NewRegion(1, 2, 30, 40)}, nil, false},
		{"区域优先", full, "t.png", RegionSelection{Region: NewRegion(1, 2, 30, 40)}, nil, true},
		{"只有模板", Corners{}, "t.png", FileSelection{Path: "t.png"}, nil, false},
		{"缺少右下角", Corners{TopLeftX: intp(1), TopLeftY: intp(2)}, "", nil, ErrIncompleteRegion, false},
		{"部分角点加模板", Corners{TopLeftX: intp(0)}, "t.png", nil, ErrIncompleteRegion, false},
		{"都没有", Corners{}, "", nil, ErrNoTemplate, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			sel, err := ResolveSelection(tc.corners, tc.template, logger.New(logger.WithOutput(&buf)))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if sel != tc.want {
				t.Errorf("Selection = %v, want %v", sel, tc.want)
			}
			warned := strings.Contains(buf.String(), "WARN")
			if warned != tc.wantWarn {
				t.Errorf("告警 = %v, want %v (%q)", warned, tc.wantWarn, buf.String())
			}
		})
	}
}

func TestFindLocation(t *testing.T) {
	searchPath, templatePath := fixture(t, 60, 45, 8, 8)
	pos, err := FindLocation(searchPath, FileSelection{Path: templatePath}, WithLogger(logger.Discard))
	if err != nil {
		t.Fatalf("FindLocation 失败: %v", err)
	}
	if pos != (Point{X: 60, Y: 45}) {
		t.Errorf("位置 = %v, want (60, 45)", pos)
	}
}

// TestBurgersFixture 真实截图样例
func TestBurgersFixture(t *testing.T) {
	testDataDir := getTestDataDir()
	searchPath := filepath.Join(testDataDir, "burgers.png")
	templatePath := filepath.Join(testDataDir, "image_to_find.png")
	if _, err := os.Stat(searchPath); err != nil {
		t.Skipf("跳过测试：缺少样例图像 %s", searchPath)
	}
	if _, err := os.Stat(templatePath); err != nil {
		t.Skipf("跳过测试：缺少样例图像 %s", templatePath)
	}

	pos, err := FindLocation(searchPath, FileSelection{Path: templatePath}, WithLogger(logger.Discard))
	if err != nil {
		t.Fatalf("FindLocation 失败: %v", err)
	}
	if pos != (Point{X: 334, Y: 665}) {
		t.Errorf("位置 = %v, want (334, 665)", pos)
	}
}
