package main

import (
	"image"
	"os"

	"github.com/zoeyai/subimage/internal/cli"
	"github.com/zoeyai/subimage/pkg/config"
	"github.com/zoeyai/subimage/pkg/screen"
	"github.com/zoeyai/subimage/pkg/vision/cv"
	"github.com/zoeyai/subimage/pkg/vision/cv/opencv"
)

func main() {
	env := cli.Env{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  config.GetDefaultManager(),
		Capture: capture,
		Show:    opencv.Show,
		Correlators: map[string]cv.Correlator{
			"opencv": opencv.Correlator{},
		},
	}
	if err := cli.Run(os.Args[1:], env); err != nil {
		os.Exit(1)
	}
}

// capture 截取全屏或指定区域
func capture(region *image.Rectangle) (image.Image, error) {
	if region == nil {
		return screen.CaptureScreen()
	}
	return screen.CaptureRegion(region.Min.X, region.Min.Y, region.Dx(), region.Dy())
}
