// Package screen 提供屏幕截图，作为模板定位的搜索图来源
package screen

import (
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"
)

// CaptureScreen 截取全屏
func CaptureScreen() (image.Image, error) {
	img, err := robotgo.CaptureImg()
	if err != nil {
		return nil, fmt.Errorf("截屏失败: %w", err)
	}
	return img, nil
}

// CaptureRegion 截取屏幕区域
func CaptureRegion(x, y, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("截图区域尺寸无效: %dx%d", width, height)
	}
	img, err := robotgo.CaptureImg(x, y, width, height)
	if err != nil {
		return nil, fmt.Errorf("截取区域失败: %w", err)
	}
	return img, nil
}
