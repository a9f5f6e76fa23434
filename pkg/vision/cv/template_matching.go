package cv

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"time"

	"github.com/zoeyai/subimage/internal/logger"
	"github.com/zoeyai/subimage/pkg/vision/grid"
	"github.com/zoeyai/subimage/pkg/vision/ncc"
)

// Correlator 计算相关面
type Correlator interface {
	Correlate(search, tmpl *grid.Grid) (*ncc.Surface, error)
}

// Matcher 模板定位器
//
// Matcher 只保存配置，每次调用的中间状态都放在返回的 Result 中，
// 因此同一个 Matcher 可以被多个 goroutine 同时使用。
type Matcher struct {
	log        logger.Sink
	correlator Correlator
}

// Option 匹配器选项
type Option func(*Matcher)

// WithLogger 注入诊断输出
func WithLogger(sink logger.Sink) Option {
	return func(m *Matcher) {
		if sink != nil {
			m.log = sink
		}
	}
}

// WithMethod 使用内置 NCC 实现的指定计算方式
func WithMethod(method ncc.Method) Option {
	return func(m *Matcher) {
		m.correlator = method
	}
}

// WithCorrelator 使用自定义相关实现
func WithCorrelator(c Correlator) Option {
	return func(m *Matcher) {
		if c != nil {
			m.correlator = c
		}
	}
}

// NewMatcher 创建模板定位器
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		log:        logger.Default(),
		correlator: ncc.Auto,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Locate 在 searchPath 指定的图像中查找模板
func (m *Matcher) Locate(searchPath string, sel Selection) (*Result, error) {
	search, err := m.readGrid(searchPath)
	if err != nil {
		return nil, fmt.Errorf("加载搜索图失败: %w", err)
	}
	return m.locate(search, sel)
}

// LocateImage 在内存图像中查找模板（如屏幕截图）
func (m *Matcher) LocateImage(img image.Image, sel Selection) (*Result, error) {
	search, err := grid.FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("加载搜索图失败: %w", err)
	}
	return m.locate(search, sel)
}

func (m *Matcher) locate(search *grid.Grid, sel Selection) (*Result, error) {
	tmpl, err := m.templateFor(search, sel)
	if err != nil {
		return nil, err
	}
	return m.LocateGrid(search, tmpl)
}

// LocateGrid 在灰度网格中查找模板网格
func (m *Matcher) LocateGrid(search, tmpl *grid.Grid) (*Result, error) {
	if search == nil {
		return nil, fmt.Errorf("%w: 搜索图为空", grid.ErrEmpty)
	}
	if tmpl == nil {
		return nil, ErrNoTemplate
	}
	startTime := time.Now()

	if err := checkTemplateFits(search.Cols(), search.Rows(), tmpl.Cols(), tmpl.Rows()); err != nil {
		return nil, err
	}

	surface, err := m.correlator.Correlate(search, tmpl)
	if err != nil {
		m.log.LogEvent("CV", false, elapsedMs(startTime), err.Error())
		return nil, fmt.Errorf("计算相关面失败: %w", err)
	}

	row, col, score := surface.ArgMax()
	result := newResult(row, col, score, surface, search, tmpl)
	result.Time = elapsedMs(startTime)

	m.log.LogEvent("CV", true, result.Time, fmt.Sprintf("位置=%v 得分=%.4f", result.Point, score))
	return result, nil
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// templateFor 按 Selection 取得模板网格
func (m *Matcher) templateFor(search *grid.Grid, sel Selection) (*grid.Grid, error) {
	switch s := sel.(type) {
	case RegionSelection:
		if err := s.Region.Validate(search.Bounds()); err != nil {
			return nil, err
		}
		return search.Slice(s.Region.Rect())
	case FileSelection:
		tmpl, err := m.readGrid(s.Path)
		if err != nil {
			m.log.Error("模板加载失败: %s: %v", s.Path, err)
			return nil, fmt.Errorf("%w: %w", ErrNoTemplate, err)
		}
		return tmpl, nil
	case nil:
		return nil, ErrNoTemplate
	default:
		return nil, fmt.Errorf("不支持的模板来源: %T", sel)
	}
}

// readGrid 读取灰度网格，文件不存在时附加 ErrFileNotFound
func (m *Matcher) readGrid(path string) (*grid.Grid, error) {
	g, err := grid.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileNotFound, path, err)
	}
	return g, err
}

// FindLocation 便捷函数：返回模板在搜索图中的 (x, y)
func FindLocation(searchPath string, sel Selection, opts ...Option) (Point, error) {
	res, err := NewMatcher(opts...).Locate(searchPath, sel)
	if err != nil {
		return Point{}, err
	}
	return res.Point, nil
}
