// Package cv 提供模板定位功能
//
// 在搜索图中查找模板，以归一化互相关 (NCC) 计算相关面并返回峰值位置。
// 模板可以来自搜索图的一个矩形区域，也可以来自单独的图像文件，
// 二者通过 Selection 明确选择其一。
//
// 基本用法:
//
//	// 使用单独的模板文件
//	res, err := cv.NewMatcher().Locate("screen.png", cv.FileSelection{Path: "template.png"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("找到位置: (%d, %d)\n", res.Point.X, res.Point.Y)
//
//	// 使用搜索图中的区域作为模板
//	res, err := cv.NewMatcher(cv.WithMethod(ncc.FFT)).Locate("screen.png",
//	    cv.RegionSelection{Region: cv.NewRegion(10, 20, 110, 70)},
//	)
package cv
