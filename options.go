package dispatch

import "log/slog"

// Option configures a Dispatcher during creation.
// Use functional options to customize Dispatcher behavior.
//
// Example:
//
//	// Default: private loader cache, pooled buffers, package logger
//	d := dispatch.NewDispatcher()
//
//	// Share compiled loaders between dispatchers
//	loaders := dispatch.NewLoaderCache()
//	d1 := dispatch.NewDispatcher(dispatch.WithLoaderCache(loaders))
//	d2 := dispatch.NewDispatcher(dispatch.WithLoaderCache(loaders))
type Option func(*options)

// options holds optional configuration for Dispatcher creation.
type options struct {
	loaders *LoaderCache
	logger  *slog.Logger
	pooling bool
}

// defaultOptions returns the default dispatcher options.
func defaultOptions() options {
	return options{
		loaders: nil, // Will be created if nil
		pooling: true,
	}
}

// WithLoaderCache sets the loader cache used by the Dispatcher.
// Dispatchers sharing a cache build each shape once between them.
func WithLoaderCache(c *LoaderCache) Option {
	return func(o *options) {
		o.loaders = c
	}
}

// WithLogger sets the logger used by the Dispatcher instead of [Logger].
// When the Dispatcher creates its own loader cache, the cache logs through
// the same logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithoutPooling makes every dispatch allocate fresh buffers. Release
// becomes a no-op.
func WithoutPooling() Option {
	return func(o *options) {
		o.pooling = false
	}
}
