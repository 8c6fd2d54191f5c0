package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ezekail/novelcrawler/collect"
	"github.com/Ezekail/novelcrawler/config"
	"github.com/Ezekail/novelcrawler/engine"
	"github.com/Ezekail/novelcrawler/log"
	"github.com/Ezekail/novelcrawler/matcher"
	"github.com/Ezekail/novelcrawler/parse"
	"github.com/Ezekail/novelcrawler/proxy"
	"github.com/Ezekail/novelcrawler/rule"
	"github.com/Ezekail/novelcrawler/textproc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type flags struct {
	config   string
	rule     string
	preset   string
	url      string
	out      string
	outDir   string
	maxPages int
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "novelcrawler",
		Short:         "Extract paginated content with declarative rules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.config, "config", "", "yaml config file")
	root.PersistentFlags().StringVar(&f.rule, "rule", "", "content rule file (json or yaml)")
	root.PersistentFlags().StringVar(&f.preset, "preset", "default",
		"built-in rule used when --rule is empty: "+strings.Join(parse.Names(), ", "))
	root.PersistentFlags().IntVar(&f.maxPages, "max-pages", 0, "stop after this many pages (0 = no limit)")

	content := &cobra.Command{
		Use:   "content",
		Short: "Follow the next-page links from --url and print the joined content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runContent(cmd, &f)
		},
	}
	content.Flags().StringVar(&f.url, "url", "", "first page")
	content.Flags().StringVar(&f.out, "out", "", "output file, stdout when empty")
	_ = content.MarkFlagRequired("url")

	batch := &cobra.Command{
		Use:   "batch URL...",
		Short: "Run one pagination per URL concurrently and write <run id>.txt files to --out",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, &f, args)
		},
	}
	batch.Flags().StringVar(&f.outDir, "out", ".", "output directory")

	root.AddCommand(content, batch)
	return root
}

// crawler 由配置组装出的运行组件
type crawler struct {
	logger  *zap.Logger
	closers []io.Closer
	rule    *rule.ContentRule
	opts    []engine.Option
	cfg     *config.Config
}

func (r *crawler) Close() {
	_ = r.logger.Sync()
	for _, c := range r.closers {
		_ = c.Close()
	}
}

func setup(cmd *cobra.Command, f *flags) (*crawler, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	rt := &crawler{cfg: cfg}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}
	plugins := []log.Plugin{log.NewStderrPlugin(level)}
	if cfg.Log.File != "" {
		plugin, closer := log.NewFilePlugin(cfg.Log.File, level)
		plugins = append(plugins, plugin)
		rt.closers = append(rt.closers, closer)
	}
	rt.logger = log.NewLogger(plugins...)

	if f.rule != "" {
		if rt.rule, err = rule.LoadFile(f.rule); err != nil {
			rt.Close()
			return nil, err
		}
	} else {
		var ok bool
		if rt.rule, ok = parse.Lookup(f.preset); !ok {
			rt.Close()
			return nil, errors.Errorf("unknown preset %q", f.preset)
		}
	}

	fetcher := &collect.HTTPFetcher{
		Timeout:   cfg.Fetcher.Timeout,
		UserAgent: cfg.Fetcher.UserAgent,
		Logger:    rt.logger,
	}
	if len(cfg.Fetcher.Proxies) > 0 {
		if fetcher.Proxy, err = proxy.RoundRobinProxySwitcher(cfg.Fetcher.Proxies...); err != nil {
			rt.Close()
			return nil, err
		}
	}
	if cfg.Fetcher.QPS > 0 {
		fetcher.Limiter = rate.NewLimiter(rate.Limit(cfg.Fetcher.QPS), cfg.Fetcher.Burst)
	}

	// 默认使用内置的 OpenCC 繁简字典，配置了对照表时以对照表为准
	var processor *textproc.Processor
	if cfg.Convert.Table != "" {
		table, err := loadTable(cfg.Convert.Table)
		if err != nil {
			rt.Close()
			return nil, err
		}
		processor = &textproc.Processor{Converter: table}
	}

	maxPages := cfg.Engine.MaxPages
	if cmd.Flags().Changed("max-pages") {
		maxPages = f.maxPages
	}
	rt.opts = []engine.Option{
		engine.WithFetcher(fetcher),
		engine.WithLogger(rt.logger),
		engine.WithRegistry(matcher.NewRegistry(
			matcher.WithPoolSize(cfg.Pattern.CacheSize),
			matcher.WithLogger(rt.logger),
		)),
		engine.WithMaxPages(maxPages),
		engine.WithSeparator(cfg.Engine.Separator),
		engine.WithWorkCount(cfg.Engine.WorkCount),
	}
	if processor != nil {
		rt.opts = append(rt.opts, engine.WithProcessor(processor))
	}
	return rt, nil
}

func loadTable(path string) (textproc.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open convert table")
	}
	defer file.Close()
	return textproc.LoadTable(file)
}

func runContent(cmd *cobra.Command, f *flags) error {
	rt, err := setup(cmd, f)
	if err != nil {
		return err
	}
	defer rt.Close()

	p := engine.NewPaginator(rt.opts...)
	res, runErr := p.RunURL(cmd.Context(), rt.rule, f.url)
	rt.logger.Info("content finished",
		zap.String("run", res.ID),
		zap.Stringer("state", res.State),
		zap.Int("pages", res.Pages),
	)

	// 失败时也输出已经抓取到的内容
	if err := writeOutput(cmd.OutOrStdout(), f.out, res.Content); err != nil {
		return err
	}
	return runErr
}

func runBatch(cmd *cobra.Command, f *flags, urls []string) error {
	rt, err := setup(cmd, f)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	seeds := make([]*engine.Task, 0, len(urls))
	for _, u := range urls {
		seeds = append(seeds, &engine.Task{URL: u, Rule: rt.rule})
	}
	s := engine.NewSchedule(append(rt.opts, engine.WithSeeds(seeds...))...)
	stopped := make(chan struct{})
	go func() {
		s.Run(cmd.Context())
		close(stopped)
	}()
	defer func() {
		s.Close()
		<-stopped
	}()

	var failed int
	for range urls {
		var r engine.TaskResult
		select {
		case r = <-s.Results():
		case <-cmd.Context().Done():
			return cmd.Context().Err()
		}
		if r.Err != nil {
			failed++
		}
		if len(r.Result.Content) == 0 {
			continue
		}
		name := filepath.Join(f.outDir, r.Task.ID+".txt")
		if err := writeOutput(nil, name, r.Result.Content); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d pages\t%s\n", r.Task.URL, r.Result.State, r.Result.Pages, name)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d runs failed", failed, len(urls))
	}
	return nil
}

func writeOutput(stdout io.Writer, path string, content []byte) error {
	if path == "" {
		_, err := stdout.Write(content)
		return err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}
