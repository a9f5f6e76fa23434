package cv

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound 图像文件不存在
	ErrFileNotFound = errors.New("图像文件不存在")
	// ErrNoTemplate 没有可用的模板
	ErrNoTemplate = errors.New("未提供可用的模板")
	// ErrIncompleteRegion 只提供了部分区域角点
	ErrIncompleteRegion = errors.New("区域角点不完整")
	// ErrInvalidGeometry 区域或尺寸不合法，*GeometryError 满足 errors.Is
	ErrInvalidGeometry = errors.New("几何参数不合法")
)

// GeometryError 区域或尺寸错误
type GeometryError struct {
	Reason string
	// SearchSize 搜索图尺寸 (w, h)，仅尺寸错误时填写
	SearchSize [2]int
	// TemplateSize 模板尺寸 (w, h)，仅尺寸错误时填写
	TemplateSize [2]int
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidGeometry, e.Reason)
}

// Is 使 errors.Is(err, ErrInvalidGeometry) 成立
func (e *GeometryError) Is(target error) bool {
	return target == ErrInvalidGeometry
}

// checkTemplateFits 检查模板不大于搜索图
func checkTemplateFits(searchW, searchH, tmplW, tmplH int) error {
	if searchH < tmplH || searchW < tmplW {
		return &GeometryError{
			Reason:       fmt.Sprintf("模板 %dx%d 大于搜索图 %dx%d", tmplW, tmplH, searchW, searchH),
			SearchSize:   [2]int{searchW, searchH},
			TemplateSize: [2]int{tmplW, tmplH},
		}
	}
	return nil
}
