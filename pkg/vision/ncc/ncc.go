// Package ncc 计算归一化互相关 (NCC) 相关面
//
// 对模板的每个可行偏移 (r, c)，得分为模板与搜索图对应窗口的相关系数:
//
//	score = Σ W·(T-μT) / sqrt( (ΣW² - (ΣW)²/n) · Σ(T-μT)² )
//
// 完全相同的图块得分为 1，得分对窗口的均匀亮度偏移和对比度缩放不变。
// 窗口或模板为纯色（方差为 0）时得分记为 0。
//
// 相关面尺寸为 (H-h+1) x (W-w+1)。
package ncc

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zoeyai/subimage/pkg/vision/grid"
)

// flatVariance 每像素方差低于此值视为纯色
const flatVariance = 1e-12

// ErrTemplateTooLarge 模板大于搜索图
var ErrTemplateTooLarge = errors.New("模板尺寸大于搜索图像")

// Method 相关计算方式
type Method int

const (
	// Auto 按计算量自动选择
	Auto Method = iota
	// Direct 空间域直接求和
	Direct
	// FFT 频域计算互相关项
	FFT
)

func (m Method) String() string {
	switch m {
	case Auto:
		return "auto"
	case Direct:
		return "direct"
	case FFT:
		return "fft"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod 解析方法名
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "direct":
		return Direct, nil
	case "fft":
		return FFT, nil
	}
	return Auto, fmt.Errorf("未知的相关计算方式: %q", s)
}

// Correlate 实现 Correlator 接口
func (m Method) Correlate(search, tmpl *grid.Grid) (*Surface, error) {
	return Correlate(search, tmpl, m)
}

// Correlate 计算模板在搜索图上的 NCC 相关面
func Correlate(search, tmpl *grid.Grid, method Method) (*Surface, error) {
	if search == nil || tmpl == nil {
		return nil, fmt.Errorf("%w: 搜索图或模板为空", grid.ErrEmpty)
	}
	H, W := search.Dims()
	h, w := tmpl.Dims()
	if h > H || w > W {
		return nil, fmt.Errorf("%w: 模板 %dx%d, 搜索图 %dx%d", ErrTemplateTooLarge, w, h, W, H)
	}

	outR, outC := H-h+1, W-w+1
	n := float64(h * w)

	// 零均值模板
	t0, ssdT := centered(tmpl)

	out := make([]float64, outR*outC)
	if ssdT <= n*flatVariance {
		// 纯色模板与任何窗口都不相关
		return newSurface(outR, outC, out)
	}

	if method == Auto {
		method = choose(H, W, h, w)
	}

	var cross []float64
	switch method {
	case Direct:
		cross = crossDirect(search, t0, h, w)
	case FFT:
		cross = crossFFT(search, t0, h, w)
	default:
		return nil, fmt.Errorf("不支持的相关计算方式: %v", method)
	}

	sat := newSummedArea(search)

	for r := 0; r < outR; r++ {
		for c := 0; c < outC; c++ {
			sum, sum2 := sat.window(r, c, h, w)
			varW := sum2 - sum*sum/n
			if varW <= n*flatVariance {
				continue
			}
			score := cross[r*outC+c] / math.Sqrt(varW*ssdT)
			out[r*outC+c] = clamp(score)
		}
	}
	return newSurface(outR, outC, out)
}

// centered 返回去均值后的模板数据与平方和
func centered(tmpl *grid.Grid) ([]float64, float64) {
	data := tmpl.Data()
	var mean float64
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	t0 := make([]float64, len(data))
	var ssd float64
	for i, v := range data {
		d := v - mean
		t0[i] = d
		ssd += d * d
	}
	return t0, ssd
}

// crossDirect 空间域计算 Σ S[r+i][c+j]·T0[i][j]
func crossDirect(search *grid.Grid, t0 []float64, h, w int) []float64 {
	H, W := search.Dims()
	outR, outC := H-h+1, W-w+1
	s := search.Data()
	out := make([]float64, outR*outC)

	for r := 0; r < outR; r++ {
		for c := 0; c < outC; c++ {
			var acc float64
			for i := 0; i < h; i++ {
				srow := s[(r+i)*W+c : (r+i)*W+c+w]
				trow := t0[i*w : i*w+w]
				for j, tv := range trow {
					acc += srow[j] * tv
				}
			}
			out[r*outC+c] = acc
		}
	}
	return out
}

// choose 比较两种方式的估算计算量
func choose(H, W, h, w int) Method {
	outR, outC := H-h+1, W-w+1
	direct := float64(outR) * float64(outC) * float64(h) * float64(w)

	p, q := fftSize(H), fftSize(W)
	pq := float64(p * q)
	// 三次二维变换，每点约 5 次浮点运算
	fft := 3 * 5 * pq * math.Log2(pq)
	if direct <= fft {
		return Direct
	}
	return FFT
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// summedArea 搜索图及其平方的积分图，尺寸 (H+1) x (W+1)
type summedArea struct {
	stride int
	sum    []float64
	sum2   []float64
}

func newSummedArea(g *grid.Grid) *summedArea {
	H, W := g.Dims()
	stride := W + 1
	sa := &summedArea{
		stride: stride,
		sum:    make([]float64, (H+1)*stride),
		sum2:   make([]float64, (H+1)*stride),
	}
	data := g.Data()
	for r := 0; r < H; r++ {
		var rowSum, rowSum2 float64
		for c := 0; c < W; c++ {
			v := data[r*W+c]
			rowSum += v
			rowSum2 += v * v
			i := (r+1)*stride + c + 1
			sa.sum[i] = sa.sum[i-stride] + rowSum
			sa.sum2[i] = sa.sum2[i-stride] + rowSum2
		}
	}
	return sa
}

// window 返回以 (r, c) 为左上角、h x w 窗口的像素和与平方和
func (sa *summedArea) window(r, c, h, w int) (float64, float64) {
	a := r*sa.stride + c
	b := r*sa.stride + c + w
	d := (r+h)*sa.stride + c
	e := (r+h)*sa.stride + c + w
	return sa.sum[e] - sa.sum[b] - sa.sum[d] + sa.sum[a],
		sa.sum2[e] - sa.sum2[b] - sa.sum2[d] + sa.sum2[a]
}
