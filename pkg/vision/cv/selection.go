package cv

import (
	"fmt"

	"github.com/zoeyai/subimage/internal/logger"
)

// Selection 模板来源，只有 RegionSelection 与 FileSelection 两种
type Selection interface {
	isSelection()
	String() string
}

// RegionSelection 以搜索图中的区域作为模板
type RegionSelection struct {
	Region Region
}

func (RegionSelection) isSelection() {}

func (s RegionSelection) String() string {
	return fmt.Sprintf("region%v-%v", s.Region.TopLeft, s.Region.BottomRight)
}

// FileSelection 以单独的图像文件作为模板
type FileSelection struct {
	Path string
}

func (FileSelection) isSelection() {}

func (s FileSelection) String() string {
	return fmt.Sprintf("file(%s)", s.Path)
}

// Corners 命令行等入口收集的可选角点，未提供的坐标为 nil
type Corners struct {
	TopLeftX     *int
	TopLeftY     *int
	BottomRightX *int
	BottomRightY *int
}

func (c Corners) count() int {
	n := 0
	for _, v := range []*int{c.TopLeftX, c.TopLeftY, c.BottomRightX, c.BottomRightY} {
		if v != nil {
			n++
		}
	}
	return n
}

// ResolveSelection 将可选输入解析为唯一的 Selection
//
//   - 四个角点齐全时使用区域；若同时给出模板文件，记录告警并忽略文件
//   - 只给出部分角点时返回 ErrIncompleteRegion
//   - 只给出模板文件时使用文件
//   - 都没有时返回 ErrNoTemplate
func ResolveSelection(c Corners, templatePath string, sink logger.Sink) (Selection, error) {
	if sink == nil {
		sink = logger.Discard
	}

	switch n := c.count(); {
	case n == 4:
		region := NewRegion(*c.TopLeftX, *c.TopLeftY, *c.BottomRightX, *c.BottomRightY)
		if templatePath != "" {
			sink.Warn("同时提供了区域与模板文件，使用区域 %v-%v，忽略 %s",
				region.TopLeft, region.BottomRight, templatePath)
		}
		return RegionSelection{Region: region}, nil
	case n > 0:
		return nil, fmt.Errorf("%w: 需要左上与右下两个角点的全部 4 个坐标，实际提供 %d 个", ErrIncompleteRegion, n)
	case templatePath != "":
		return FileSelection{Path: templatePath}, nil
	default:
		return nil, ErrNoTemplate
	}
}
