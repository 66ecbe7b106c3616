package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/menta2k/claimprint"
	"github.com/menta2k/claimprint/internal/config"
	"github.com/menta2k/claimprint/internal/utils"
	"github.com/menta2k/claimprint/pkg/analysis"
	"github.com/menta2k/claimprint/pkg/claim"
	"github.com/menta2k/claimprint/pkg/client"
	"github.com/menta2k/claimprint/pkg/cropper"
	"github.com/menta2k/claimprint/pkg/gemini"
	"github.com/menta2k/claimprint/pkg/geometry"
	"github.com/menta2k/claimprint/pkg/llamacpp"
	"github.com/menta2k/claimprint/pkg/ollama"
	"github.com/menta2k/claimprint/pkg/processing"
)

const envPrefix = "CLAIMPRINT"

const usage = `usage: claimprint <command> [flags]

commands:
  crop     crop one receipt photo
  layout   build a printable claim from receipt photos
  config   write the default configuration file
  version  print the version`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "crop":
		err = runCrop(ctx, args)
	case "layout":
		err = runLayout(ctx, args)
	case "config":
		err = runConfig(args)
	case "version", "--version", "-v":
		fmt.Println(claimprint.Version)
	case "help", "--help", "-h":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		if !errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// loadConfig reads the file named by --config or CLAIMPRINT_CONFIG before
// flags are declared, so file values become flag defaults
func loadConfig(args []string) (*config.Config, error) {
	path := os.Getenv(envPrefix + "_CONFIG")
	for i, arg := range args {
		switch {
		case (arg == "--config" || arg == "-config") && i+1 < len(args):
			path = args[i+1]
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
		}
	}
	if path == "" {
		if p := config.GetConfigPath(); utils.FileExists(p) {
			path = p
		}
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func parseFlags(fs *ff.FlagSet, args []string) error {
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(envPrefix)); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		return err
	}
	return nil
}

func runCrop(ctx context.Context, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	fs := ff.NewFlagSet("claimprint crop")
	var (
		in      = fs.StringLong("in", "", "input receipt path or URL (jpg/png/webp/heic/pdf)")
		out     = fs.StringLong("out", "", "output file (default <in>_cropped.<format>)")
		rect    = fs.StringLong("rect", "", "crop rectangle x,y,w,h in source pixels")
		drags   = fs.StringLong("drag", "", "pointer drags x0,y0,x1,y1 in source pixels, separated by ';'")
		policy  = fs.StringLong("policy", cfg.Crop.Policy, "initial rectangle: centered|full|detected")
		format  = fs.StringLong("format", cfg.Crop.Format, "output format: jpg|png|webp")
		quality = fs.IntLong("quality", cfg.Crop.Quality, "JPEG/WebP quality (1-100)")
		overlay = fs.StringLong("overlay", "", "also write the editor overlay to this PNG")
		_       = fs.StringLong("config", "", "JSON config file")
		verbose = fs.BoolLong("verbose", "enable debug logging")
	)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	logger := newLogger(os.Stderr, *verbose)

	if *in == "" {
		return fmt.Errorf("--in is required")
	}
	cfg.Crop.Policy, cfg.Crop.Format, cfg.Crop.Quality = *policy, *format, *quality
	if err := cfg.Validate(); err != nil {
		return err
	}
	cropCfg, err := cfg.CropperConfig()
	if err != nil {
		return err
	}

	processor := processing.NewProcessor()
	data, err := processor.ReadSource(*in)
	if err != nil {
		return err
	}
	session, err := cropper.Load(data, cropCfg)
	if err != nil {
		return err
	}
	defer session.Cancel()
	logger.Debug("session started", "size", session.Bounds(), "rect", session.Rect(), "zone", session.HandleZone())

	if *rect != "" {
		r, err := parseRect(*rect)
		if err != nil {
			return fmt.Errorf("--rect: %w", err)
		}
		session.SetRect(r)
	}

	if *drags != "" {
		if err := replayDrags(session, *drags, logger); err != nil {
			return fmt.Errorf("--drag: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	cropped, err := session.Finalize()
	if err != nil {
		return err
	}

	if *out == "" {
		*out = utils.GenerateOutputFilename(*in, ".", "", "_cropped", cropCfg.Format)
	}
	if err := os.WriteFile(*out, cropped, 0644); err != nil {
		return fmt.Errorf("writing crop: %w", err)
	}
	logger.Info("crop written", "path", *out, "rect", session.Rect(), "size", utils.FormatFileSize(int64(len(cropped))))

	if *overlay != "" {
		if err := processor.SaveImage(session.Overlay(), *overlay, "png", 0, false); err != nil {
			return fmt.Errorf("writing overlay: %w", err)
		}
		logger.Debug("overlay written", "path", *overlay)
	}
	return nil
}

// replayDrags feeds each drag to the session as pointer events over a view
// showing the image at native size
func replayDrags(s *cropper.Session, drags string, logger *log.Logger) error {
	view := geometry.Rect{W: s.Bounds().W, H: s.Bounds().H}
	for _, d := range strings.Split(drags, ";") {
		v, err := parseFloats(d, 4)
		if err != nil {
			return err
		}
		if !s.PointerDown(view, geometry.Point{X: v[0], Y: v[1]}) {
			logger.Warn("drag missed the crop rectangle", "at", d)
			continue
		}
		h, _ := s.Dragging()
		s.PointerMove(view, geometry.Point{X: v[2], Y: v[3]})
		s.PointerUp()
		logger.Debug("drag applied", "handle", h, "rect", s.Rect())
	}
	return nil
}

func runLayout(ctx context.Context, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	fs := ff.NewFlagSet("claimprint layout")
	var (
		out        = fs.StringLong("out", cfg.Output.OutputDir, "output directory")
		layoutName = fs.StringLong("layout", cfg.Output.Layout, "layout policy: grid|freeform")
		pageFormat = fs.StringLong("page-format", cfg.Output.PageFormat, "page preview format: png|jpg|webp")
		dpi        = fs.IntLong("dpi", int(cfg.Output.DPI), "page preview resolution")
		policy     = fs.StringLong("policy", cfg.Crop.Policy, "initial crop of each photo: centered|full|detected")
		backend    = fs.StringLong("backend", cfg.AI.Backend, "vision backend: none|ollama|llamacpp|gemini")
		url        = fs.StringLong("url", cfg.AI.URL, "vision backend URL (ollama, llamacpp; empty for the backend default)")
		model      = fs.StringLong("model", cfg.AI.Model, "vision model name (empty for the backend default)")
		apiKey     = fs.StringLong("api-key", "", "Gemini API key (default from the env var named by ai.api_key_env)")
		name       = fs.StringLong("name", cfg.Claim.Name, "claimant name")
		month      = fs.StringLong("month", cfg.Claim.Month, "claim month (default current month)")
		company    = fs.StringLong("company", cfg.Claim.Company, "company printed on the form")
		_          = fs.StringLong("config", "", "JSON config file")
		verbose    = fs.BoolLong("verbose", "enable debug logging")
	)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	logger := newLogger(os.Stderr, *verbose)

	cfg.Output.OutputDir, cfg.Output.Layout, cfg.Output.PageFormat = *out, *layoutName, *pageFormat
	cfg.Output.DPI = float64(*dpi)
	cfg.Crop.Policy = *policy
	cfg.AI.Backend, cfg.AI.URL, cfg.AI.Model = *backend, *url, *model
	if err := cfg.Validate(); err != nil {
		return err
	}

	sources, err := utils.ExpandReceiptPaths(fs.GetArgs())
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no receipt images given")
	}

	cropCfg, err := cfg.CropperConfig()
	if err != nil {
		return err
	}

	var analyzer *analysis.Service
	if cfg.AI.Backend != "none" {
		vc, closeFn, err := newVisionClient(ctx, cfg.AI, *apiKey)
		if err != nil {
			return err
		}
		defer closeFn()
		analyzer = analysis.New(vc, logger)
		analyzer.MaxDim = cfg.AI.MaxDim
	}

	c := claim.New(time.Now())
	c.Company, c.Name = *company, *name
	if cfg.Claim.Title != "" {
		c.Title = cfg.Claim.Title
	}
	if *month != "" {
		c.Month = *month
	}
	for _, cat := range cfg.Claim.Categories {
		c.AddCategory(cat)
	}

	p := claimprint.NewPrinter(c, claimprint.Options{
		Crop:        cropCfg,
		Grid:        cfg.Grid,
		Freeform:    cfg.Freeform,
		Layout:      cfg.Output.Layout,
		DPI:         cfg.Output.DPI,
		PageFormat:  cfg.Output.PageFormat,
		PageQuality: cfg.Output.Quality,
		Analyzer:    analyzer,
		Logger:      logger,
	})

	for _, src := range sources {
		if _, err := p.AddFile(src); err != nil {
			logger.Error("skipping receipt", "err", err)
		}
	}
	if len(c.Receipts) == 0 {
		return fmt.Errorf("none of %d receipts could be read", len(sources))
	}

	start := time.Now()
	if failed := p.Analyze(ctx); failed > 0 {
		logger.Warn("some receipts need manual entry", "failed", failed, "of", len(c.Receipts))
	} else if analyzer != nil {
		logger.Infof("analyzed %d receipts (%s)", len(c.Receipts), time.Since(start).Round(time.Millisecond))
	}

	result, err := p.Write(cfg.Output.OutputDir)
	if err != nil {
		return err
	}
	logger.Info("claim written",
		"plan", result.PlanPath,
		"pages", len(result.Pages),
		"receipts", len(c.Receipts),
		"total", fmt.Sprintf("%.2f", c.Total()),
	)
	return nil
}

func newVisionClient(ctx context.Context, cfg config.AIConfig, apiKey string) (client.VisionClient, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case "ollama":
		c, err := ollama.NewClient(cfg.URL, cfg.Model)
		return c, noop, err
	case "llamacpp":
		c, err := llamacpp.NewClient(cfg.URL, cfg.Model)
		return c, noop, err
	case "gemini":
		if apiKey == "" {
			apiKey = os.Getenv(cfg.APIKeyEnv)
		}
		c, err := gemini.NewClient(ctx, apiKey, cfg.Model)
		if err != nil {
			return nil, noop, err
		}
		return c, func() { c.Close() }, nil
	}
	return nil, noop, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func runConfig(args []string) error {
	fs := ff.NewFlagSet("claimprint config")
	path := fs.StringLong("path", config.GetConfigPath(), "where to write the configuration")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := config.Default().SaveToFile(*path); err != nil {
		return err
	}
	fmt.Println(*path)
	return nil
}

func parseRect(s string) (geometry.Rect, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return geometry.Rect{}, err
	}
	return geometry.Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated numbers, got %q", n, s)
	}
	v := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", p)
		}
		v[i] = f
	}
	return v, nil
}
