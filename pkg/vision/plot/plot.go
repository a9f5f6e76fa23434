// Package plot 绘制模板定位的诊断图
//
// 诊断图由三个面板组成：模板、带匹配框的搜索图、带峰值标记的相关面。
package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/zoeyai/subimage/pkg/vision/cv"
)

var (
	background = color.RGBA{255, 255, 255, 255}
	textColor  = color.RGBA{0, 0, 0, 255}
	markColor  = color.RGBA{255, 0, 0, 255}
)

// Options 绘图选项
type Options struct {
	// PanelSize 每个面板的图像区域边长（像素）
	PanelSize int
	// Margin 面板间距
	Margin int
	// FontSize 标题字号
	FontSize float64
}

// DefaultOptions 默认绘图选项
func DefaultOptions() Options {
	return Options{
		PanelSize: 320,
		Margin:    12,
		FontSize:  13,
	}
}

var (
	fontOnce   sync.Once
	regular    *truetype.Font
	regularErr error
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		regular, regularErr = freetype.ParseFont(goregular.TTF)
	})
	return regular, regularErr
}

// panel 单个面板
type panel struct {
	title string
	img   image.Image
	// decorate 在缩放后的图像上叠加标记，scale 为缩放比例
	decorate func(dst *image.RGBA, origin image.Point, scale float64)
}

// Render 绘制诊断图
func Render(res *cv.Result, opts Options) (*image.RGBA, error) {
	if res == nil || res.Search == nil || res.Template == nil || res.Surface == nil {
		return nil, fmt.Errorf("没有可绘制的匹配结果")
	}
	if opts.PanelSize <= 0 {
		opts = DefaultOptions()
	}

	f, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("加载字体失败: %w", err)
	}

	x, y := res.XY()
	tw, th := res.Template.Cols(), res.Template.Rows()

	panels := []panel{
		{title: "template", img: res.Template.ToImage()},
		{
			title: "image",
			img:   res.Search.ToImage(),
			decorate: func(dst *image.RGBA, o image.Point, s float64) {
				strokeRect(dst, image.Rect(
					o.X+int(float64(x)*s), o.Y+int(float64(y)*s),
					o.X+int(float64(x+tw)*s), o.Y+int(float64(y+th)*s),
				), markColor)
			},
		},
		{
			title: fmt.Sprintf("correlation\nfound position: x: %d, y: %d", x, y),
			img:   Colorize(res.Surface.Grid()),
			decorate: func(dst *image.RGBA, o image.Point, s float64) {
				cx := o.X + int((float64(x)+0.5)*s)
				cy := o.Y + int((float64(y)+0.5)*s)
				strokeCircle(dst, image.Pt(cx, cy), 10, markColor)
			},
		},
	}

	lineHeight := int(opts.FontSize*1.4 + 0.5)
	titleHeight := 2*lineHeight + opts.Margin/2
	width := len(panels)*opts.PanelSize + (len(panels)+1)*opts.Margin
	height := titleHeight + opts.PanelSize + 2*opts.Margin

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(f)
	ctx.SetFontSize(opts.FontSize)
	ctx.SetClip(dst.Bounds())
	ctx.SetDst(dst)
	ctx.SetSrc(image.NewUniform(textColor))
	ctx.SetHinting(font.HintingFull)

	for i, p := range panels {
		left := opts.Margin + i*(opts.PanelSize+opts.Margin)

		for j, line := range strings.Split(p.title, "\n") {
			pt := freetype.Pt(left, opts.Margin+(j+1)*lineHeight)
			if _, err := ctx.DrawString(line, pt); err != nil {
				return nil, fmt.Errorf("绘制标题失败: %w", err)
			}
		}

		box := image.Rect(left, opts.Margin+titleHeight, left+opts.PanelSize, opts.Margin+titleHeight+opts.PanelSize)
		target, scale := fit(p.img.Bounds(), box)
		draw.NearestNeighbor.Scale(dst, target, p.img, p.img.Bounds(), draw.Src, nil)
		if p.decorate != nil {
			p.decorate(dst, target.Min, scale)
		}
	}
	return dst, nil
}

// SavePNG 绘制诊断图并保存为 PNG
func SavePNG(res *cv.Result, filename string, opts Options) error {
	img, err := Render(res, opts)
	if err != nil {
		return err
	}

	// 确保目录存在
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("保存图像失败: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("PNG 编码失败: %w", err)
	}
	return f.Close()
}

// fit 在 box 内按比例放置 src，居中对齐
func fit(src, box image.Rectangle) (image.Rectangle, float64) {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	scale := float64(box.Dx()) / sw
	if s := float64(box.Dy()) / sh; s < scale {
		scale = s
	}
	w := max(1, int(sw*scale))
	h := max(1, int(sh*scale))
	x := box.Min.X + (box.Dx()-w)/2
	y := box.Min.Y + (box.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h), scale
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	for x := r.Min.X; x <= r.Max.X; x++ {
		dst.Set(x, r.Min.Y, c)
		dst.Set(x, r.Max.Y, c)
	}
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		dst.Set(r.Min.X, y, c)
		dst.Set(r.Max.X, y, c)
	}
}

// strokeCircle 中点画圆法
func strokeCircle(dst *image.RGBA, center image.Point, radius int, c color.Color) {
	x, y := radius, 0
	d := 1 - radius
	for x >= y {
		for _, p := range [][2]int{{x, y}, {y, x}, {-y, x}, {-x, y}, {-x, -y}, {-y, -x}, {y, -x}, {x, -y}} {
			dst.Set(center.X+p[0], center.Y+p[1], c)
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}
