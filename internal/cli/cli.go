// Package cli 实现 subimage 命令行流程
//
// 截屏与窗口显示依赖 cgo，由 main 通过 Env 注入，本包只依赖纯 Go 实现。
package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/zoeyai/subimage/internal/logger"
	"github.com/zoeyai/subimage/pkg/config"
	"github.com/zoeyai/subimage/pkg/vision/cv"
	"github.com/zoeyai/subimage/pkg/vision/ncc"
	"github.com/zoeyai/subimage/pkg/vision/plot"
)

// 版本信息 (可通过 ldflags 注入)
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	// ErrNoSearchImage 未指定搜索图来源
	ErrNoSearchImage = errors.New("缺少搜索图，请使用 -image、-screen 或 -region 参数")
	// ErrUnsupported 当前构建未提供该功能
	ErrUnsupported = errors.New("当前构建不支持该功能")
)

// Env 命令运行环境
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	// Config 配置管理器，为 nil 时使用默认管理器
	Config *config.Manager
	// Capture 截取屏幕，region 为 nil 时截取全屏
	Capture func(region *image.Rectangle) (image.Image, error)
	// Show 在窗口中显示诊断图
	Show func(img image.Image, title string) error
	// Correlators 内置方式以外的相关实现，键为 -method 取值
	Correlators map[string]cv.Correlator
}

// optionalInt 记录是否被显式设置的整数参数
type optionalInt struct {
	value *int
}

func (o *optionalInt) String() string {
	if o.value == nil {
		return ""
	}
	return strconv.Itoa(*o.value)
}

func (o *optionalInt) Set(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	o.value = &v
	return nil
}

// regionFlag 屏幕区域 x,y,w,h
type regionFlag struct {
	rect *image.Rectangle
}

func (r *regionFlag) String() string {
	if r.rect == nil {
		return ""
	}
	return fmt.Sprintf("%d,%d,%d,%d", r.rect.Min.X, r.rect.Min.Y, r.rect.Dx(), r.rect.Dy())
}

func (r *regionFlag) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return fmt.Errorf("区域格式应为 x,y,w,h: %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("区域坐标无效: %q", p)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return fmt.Errorf("区域尺寸无效: %dx%d", v[2], v[3])
	}
	rect := image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3])
	r.rect = &rect
	return nil
}

// Run 解析参数并执行一次模板定位
//
// 错误在返回前已写入日志，调用方只需决定退出码。
func Run(args []string, env Env) error {
	if env.Config == nil {
		env.Config = config.GetDefaultManager()
	}

	fs := flag.NewFlagSet("subimage", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)

	var tlX, tlY, brX, brY optionalInt
	var region regionFlag

	var (
		imagePath    = fs.String("image", "", "要搜索的图像文件")
		templatePath = fs.String("template", "", "模板图像文件")
		useScreen    = fs.Bool("screen", false, "使用当前屏幕截图作为搜索图")
		method       = fs.String("method", "", "相关计算方式: auto | direct | fft | opencv")
		plotPath     = fs.String("plot", "", "诊断图输出路径 (PNG)")
		show         = fs.Bool("show", false, "在窗口中显示诊断图")
		jsonOutput   = fs.Bool("json", false, "以 JSON 输出完整结果")
		logLevel     = fs.String("log-level", "", "日志级别: DEBUG | INFO | WARN | ERROR")
		quiet        = fs.Bool("quiet", false, "关闭日志输出")
		saveConfig   = fs.Bool("save", false, "保存 -method/-plot/-log-level 到本地配置")
		showVersion  = fs.Bool("version", false, "显示版本信息")
		showHelp     = fs.Bool("help", false, "显示帮助信息")
	)
	fs.Var(&tlX, "tl-x", "模板区域左上角 x")
	fs.Var(&tlY, "tl-y", "模板区域左上角 y")
	fs.Var(&brX, "br-x", "模板区域右下角 x (不含)")
	fs.Var(&brY, "br-y", "模板区域右下角 y (不含)")
	fs.Var(&region, "region", "截取屏幕区域 x,y,w,h 作为搜索图，坐标相对于该区域")
	fs.Usage = func() { printHelp(env.Stderr, fs, env.Config) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		printVersion(env.Stdout)
		return nil
	}
	if *showHelp {
		printHelp(env.Stdout, fs, env.Config)
		return nil
	}

	log := logger.New(logger.WithOutput(env.Stderr), logger.WithLevel(logger.WARN))
	defer log.Close()
	if *quiet {
		log.SetEnabled(false)
	}

	// 加载配置，命令行参数优先级高于配置文件
	cfg, err := env.Config.Load()
	if err != nil {
		log.Warn("加载配置失败: %v", err)
	}
	if *method != "" {
		cfg.Method = *method
	}
	if *plotPath != "" {
		cfg.PlotPath = *plotPath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		if err := log.SetFile(cfg.LogFile); err != nil {
			log.Warn("%v", err)
		}
	}

	if *saveConfig {
		if err := env.Config.Save(cfg); err != nil {
			log.Warn("保存配置失败: %v", err)
		} else {
			log.Info("配置已保存到 %s", env.Config.GetConfigFile())
		}
	}

	req := request{
		imagePath: *imagePath,
		screen:    *useScreen || region.rect != nil,
		region:    region.rect,
		corners: cv.Corners{
			TopLeftX:     tlX.value,
			TopLeftY:     tlY.value,
			BottomRightX: brX.value,
			BottomRightY: brY.value,
		},
		templatePath: *templatePath,
		method:       cfg.Method,
		plotPath:     cfg.PlotPath,
		show:         *show,
		json:         *jsonOutput,
	}
	if err := execute(req, env, log); err != nil {
		log.Error("%v", err)
		if errors.Is(err, ErrNoSearchImage) {
			printHelp(env.Stderr, fs, env.Config)
		}
		return err
	}
	return nil
}

// request 解析后的一次定位请求
type request struct {
	imagePath    string
	screen       bool
	region       *image.Rectangle
	corners      cv.Corners
	templatePath string
	method       string
	plotPath     string
	show         bool
	json         bool
}

func execute(req request, env Env, log *logger.Logger) error {
	if req.imagePath == "" && !req.screen {
		return ErrNoSearchImage
	}

	sel, err := cv.ResolveSelection(req.corners, req.templatePath, log)
	if err != nil {
		return err
	}

	correlator, err := newCorrelator(req.method, env.Correlators)
	if err != nil {
		return err
	}
	matcher := cv.NewMatcher(cv.WithLogger(log), cv.WithCorrelator(correlator))

	var res *cv.Result
	if req.screen {
		if env.Capture == nil {
			return fmt.Errorf("%w: 截屏", ErrUnsupported)
		}
		img, err := env.Capture(req.region)
		if err != nil {
			return err
		}
		res, err = matcher.LocateImage(img, sel)
		if err != nil {
			return err
		}
	} else {
		res, err = matcher.Locate(req.imagePath, sel)
		if err != nil {
			return err
		}
	}

	if req.json {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(env.Stdout, "%d %d\n", res.Point.X, res.Point.Y)
	}

	if req.plotPath != "" {
		if err := plot.SavePNG(res, req.plotPath, plot.DefaultOptions()); err != nil {
			return err
		}
		log.Info("诊断图已保存到 %s", req.plotPath)
	}
	if req.show {
		if env.Show == nil {
			return fmt.Errorf("%w: 窗口显示", ErrUnsupported)
		}
		img, err := plot.Render(res, plot.DefaultOptions())
		if err != nil {
			return err
		}
		if err := env.Show(img, "subimage"); err != nil {
			return err
		}
	}
	return nil
}

// newCorrelator 按名称选择相关实现，extra 中的实现优先
func newCorrelator(name string, extra map[string]cv.Correlator) (cv.Correlator, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if c, ok := extra[key]; ok {
		return c, nil
	}
	method, err := ncc.ParseMethod(name)
	if err != nil {
		return nil, err
	}
	return method, nil
}

// printVersion 打印版本信息
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "subimage v%s\n", Version)
	fmt.Fprintf(w, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", GitCommit)
}

// printHelp 打印帮助信息
func printHelp(w io.Writer, fs *flag.FlagSet, m *config.Manager) {
	fmt.Fprintln(w, "subimage - 在图像中定位模板 (归一化互相关)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "用法:")
	fmt.Fprintln(w, "  subimage -image 搜索图 (-template 模板 | -tl-x X -tl-y Y -br-x X -br-y Y) [选项]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "选项:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "示例:")
	fmt.Fprintln(w, "  # 使用模板文件")
	fmt.Fprintln(w, "  subimage -image burgers.png -template image_to_find.png")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # 使用搜索图中的区域作为模板，并输出诊断图")
	fmt.Fprintln(w, "  subimage -image burgers.png -tl-x 10 -tl-y 20 -br-x 110 -br-y 70 -plot match.png")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # 在当前屏幕中查找")
	fmt.Fprintln(w, "  subimage -screen -template button.png -json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # 只在屏幕左上角 800x600 区域中查找")
	fmt.Fprintln(w, "  subimage -region 0,0,800,600 -template button.png")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "配置文件位置: %s\n", m.GetConfigFile())
}
