package engine

import (
	"github.com/Ezekail/novelcrawler/bytebuf"
	"github.com/Ezekail/novelcrawler/collect"
	"github.com/Ezekail/novelcrawler/matcher"
	"github.com/Ezekail/novelcrawler/textproc"
	"go.uber.org/zap"
)

type options struct {
	WorkCount int // 同时执行的翻页任务数
	Fetcher   collect.Fetcher
	Logger    *zap.Logger
	Registry  *matcher.Registry
	Processor *textproc.Processor
	MaxPages  int    // 单个任务最多翻页数，0 表示只受循环检测限制
	Separator string // 页与页之间的分隔符
	SizeHint  int    // 累加缓冲区首个分块大小
	Seeds     []*Task
	Sleeper   Sleeper
}

var defaultOptions = options{
	WorkCount: 1,
	Logger:    zap.NewNop(),
	Separator: "\n",
	SizeHint:  bytebuf.DefaultSize,
	Sleeper:   Sleep,
}

type Option func(opts *options)

func WithWorkCount(workCount int) Option {
	return func(opts *options) {
		opts.WorkCount = workCount
	}
}

func WithFetcher(fetcher collect.Fetcher) Option {
	return func(opts *options) {
		opts.Fetcher = fetcher
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		opts.Logger = logger
	}
}

// WithRegistry shares one matcher registry, and with it one pattern cache, between runs.
func WithRegistry(registry *matcher.Registry) Option {
	return func(opts *options) {
		opts.Registry = registry
	}
}

func WithProcessor(processor *textproc.Processor) Option {
	return func(opts *options) {
		opts.Processor = processor
	}
}

func WithMaxPages(maxPages int) Option {
	return func(opts *options) {
		opts.MaxPages = maxPages
	}
}

func WithSeparator(separator string) Option {
	return func(opts *options) {
		opts.Separator = separator
	}
}

func WithSizeHint(sizeHint int) Option {
	return func(opts *options) {
		opts.SizeHint = sizeHint
	}
}

// WithSleeper replaces the politeness wait between page fetches.
func WithSleeper(sleeper Sleeper) Option {
	return func(opts *options) {
		opts.Sleeper = sleeper
	}
}

func WithSeeds(seeds ...*Task) Option {
	return func(opts *options) {
		opts.Seeds = seeds
	}
}

func newOptions(opts []Option) options {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.Registry == nil {
		options.Registry = matcher.NewRegistry(matcher.WithLogger(options.Logger))
	}
	if options.Processor == nil {
		options.Processor = &textproc.Processor{}
		if converter, err := textproc.Simplified(); err == nil {
			options.Processor.Converter = converter
		} else {
			options.Logger.Warn("traditional to simplified conversion disabled", zap.Error(err))
		}
	}
	if options.WorkCount < 1 {
		options.WorkCount = 1
	}
	return options
}
