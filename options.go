package arriba

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/arriba/blobstore"
	"github.com/hupe1980/arriba/codec"
	"github.com/hupe1980/arriba/internal/binfmt"
)

// Compression selects how partition files are compressed on Save. Files are
// self-describing, so Load reads any of them regardless of this setting.
type Compression = binfmt.Compression

const (
	CompressionNone   = binfmt.None
	CompressionLZ4    = binfmt.LZ4
	CompressionZSTD   = binfmt.ZSTD
	CompressionSnappy = binfmt.Snappy
)

// DefaultDirectory is the directory tables are saved under when neither
// WithStore nor WithDirectory is given.
const DefaultDirectory = "."

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	store            blobstore.Store
	directory        string
	runParallel      bool
	parallelism      int
	compression      Compression
	ioBytesPerSec    int64
	queryCacheSize   int
}

// Option configures a Table.
type Option func(*options)

// WithCodec configures the codec used for the table manifest.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &arriba.BasicMetricsCollector{}
//	t := arriba.New("bugs", 100_000, arriba.WithMetricsCollector(metrics))
//	// ... use t ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithStore persists the table to s, for example an S3 or MinIO store.
// It takes precedence over WithDirectory.
func WithStore(s blobstore.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithDirectory persists the table below dir on the local file system, as
// dir/Tables/<name>/<mask>.bin.
func WithDirectory(dir string) Option {
	return func(o *options) {
		o.directory = dir
	}
}

// WithRunParallel controls whether writes and deletes touching several
// partitions process them concurrently. Enabled by default.
func WithRunParallel(enabled bool) Option {
	return func(o *options) {
		o.runParallel = enabled
	}
}

// WithParallelism bounds the number of partitions processed at once by
// queries, writes and persistence. Values <= 0 mean GOMAXPROCS.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithCompression sets the compression of partition files written by Save.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithIOLimit caps the combined read and write throughput of Save and Load
// in bytes per second. Zero means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioBytesPerSec = bytesPerSec
	}
}

// WithQueryCache caches up to entries query results until the next write.
// Only queries implementing query.Cacheable are cached. Cached results are
// shared between callers and must not be modified.
func WithQueryCache(entries int) Option {
	return func(o *options) {
		o.queryCacheSize = entries
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		directory:        DefaultDirectory,
		runParallel:      true,
		compression:      CompressionNone,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.parallelism <= 0 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}
	if o.store == nil {
		o.store = blobstore.NewLocalStore(o.directory)
	}
	return o
}
