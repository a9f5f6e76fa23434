package grid

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	// 注册解码器
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// 感知亮度权重 (ITU-R BT.709)
const (
	lumaR = 0.2125
	lumaG = 0.7154
	lumaB = 0.0721
)

// ErrDecode 图像解码失败
var ErrDecode = errors.New("图像解码失败")

// FromImage 将图像转换为灰度网格
// 彩色按亮度权重合成，带透明度的像素先与白色背景混合
func FromImage(img image.Image) (*Grid, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: 图像为空", ErrEmpty)
	}
	b := img.Bounds()
	g, err := New(b.Dy(), b.Dx())
	if err != nil {
		return nil, err
	}

	if gray, ok := img.(*image.Gray); ok {
		for y := 0; y < b.Dy(); y++ {
			off := gray.PixOffset(b.Min.X, b.Min.Y+y)
			row := gray.Pix[off : off+b.Dx()]
			for x, v := range row {
				g.data[y*g.cols+x] = float64(v) / 255
			}
		}
		return g, nil
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.data[y*g.cols+x] = Luminance(img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return g, nil
}

// Luminance 计算单个颜色的灰度值，范围 [0, 1]
func Luminance(c color.Color) float64 {
	r, gr, bl, a := c.RGBA()
	// RGBA() 返回预乘值，叠加 (1-a) 即与白色背景混合
	bg := 0xffff - a
	rf := float64(r+bg) / 0xffff
	gf := float64(gr+bg) / 0xffff
	bf := float64(bl+bg) / 0xffff
	return lumaR*rf + lumaG*gf + lumaB*bf
}

// Decode 解码图像并转换为灰度网格，返回格式名
func Decode(r io.Reader) (*Grid, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	g, err := FromImage(img)
	if err != nil {
		return nil, format, err
	}
	return g, format, nil
}

// ReadFile 读取图像文件并转换为灰度网格
// 文件不存在时返回的错误满足 errors.Is(err, fs.ErrNotExist)
func ReadFile(filename string) (*Grid, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("无法读取图像: %w", err)
	}
	defer f.Close()

	g, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return g, nil
}

// ToImage 将网格转换为 8 位灰度图像，值被裁剪到 [0, 1]
func (g *Grid) ToImage() *image.Gray {
	img := image.NewGray(g.Bounds())
	for i, v := range g.data {
		img.Pix[i] = toByte(v)
	}
	return img
}

// ToImageNormalized 把 [min, max] 线性拉伸到 [0, 255]
func (g *Grid) ToImageNormalized() *image.Gray {
	lo, hi := g.MinMax()
	img := image.NewGray(g.Bounds())
	span := hi - lo
	for i, v := range g.data {
		if span > 0 {
			v = (v - lo) / span
		} else {
			v = 0
		}
		img.Pix[i] = toByte(v)
	}
	return img
}

func toByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
