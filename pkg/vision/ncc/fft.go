package ncc

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/zoeyai/subimage/pkg/vision/grid"
)

// crossFFT 频域计算互相关项
//
// 有效区域内的偏移不会发生循环回绕，因此填充到 >= 搜索图尺寸即可。
func crossFFT(search *grid.Grid, t0 []float64, h, w int) []float64 {
	H, W := search.Dims()
	p, q := fftSize(H), fftSize(W)

	s := make([]complex128, p*q)
	for i, v := range search.Data() {
		s[(i/W)*q+i%W] = complex(v, 0)
	}
	t := make([]complex128, p*q)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			t[i*q+j] = complex(t0[i*w+j], 0)
		}
	}

	f := newFFT2(p, q)
	f.forward(s)
	f.forward(t)
	for i := range s {
		s[i] *= cmplx.Conj(t[i])
	}
	f.inverse(s)

	outR, outC := H-h+1, W-w+1
	out := make([]float64, outR*outC)
	scale := 1 / float64(p*q)
	for r := 0; r < outR; r++ {
		for c := 0; c < outC; c++ {
			out[r*outC+c] = real(s[r*q+c]) * scale
		}
	}
	return out
}

// fft2 行列分离的二维复数 FFT
type fft2 struct {
	p, q   int
	rowFFT *fourier.CmplxFFT
	colFFT *fourier.CmplxFFT
	rowBuf []complex128
	colBuf []complex128
	colTmp []complex128
}

func newFFT2(p, q int) *fft2 {
	return &fft2{
		p:      p,
		q:      q,
		rowFFT: fourier.NewCmplxFFT(q),
		colFFT: fourier.NewCmplxFFT(p),
		rowBuf: make([]complex128, q),
		colBuf: make([]complex128, p),
		colTmp: make([]complex128, p),
	}
}

func (f *fft2) forward(data []complex128) {
	f.apply(data, f.rowFFT.Coefficients, f.colFFT.Coefficients)
}

// inverse 未归一化，结果需除以 p*q
func (f *fft2) inverse(data []complex128) {
	f.apply(data, f.rowFFT.Sequence, f.colFFT.Sequence)
}

func (f *fft2) apply(data []complex128, rowFn, colFn func(dst, src []complex128) []complex128) {
	for r := 0; r < f.p; r++ {
		row := data[r*f.q : (r+1)*f.q]
		rowFn(f.rowBuf, row)
		copy(row, f.rowBuf)
	}
	for c := 0; c < f.q; c++ {
		for r := 0; r < f.p; r++ {
			f.colTmp[r] = data[r*f.q+c]
		}
		colFn(f.colBuf, f.colTmp)
		for r := 0; r < f.p; r++ {
			data[r*f.q+c] = f.colBuf[r]
		}
	}
}

// fftSize 返回 >= n 的最小 5-smooth 数（只含因子 2、3、5）
func fftSize(n int) int {
	if n <= 1 {
		return 1
	}
	for m := n; ; m++ {
		k := m
		for _, f := range []int{2, 3, 5} {
			for k%f == 0 {
				k /= f
			}
		}
		if k == 1 {
			return m
		}
	}
}
