package cli

import (
	"io"
	"time"
)

// Default process configuration values.
const (
	defaultOutputBuffer  = 64
	defaultScannerBuffer = 1 << 20 // 1 MB
	defaultGracePeriod   = 5 * time.Second
)

// Options holds resolved configuration for a started process.
type Options struct {
	// OutputBuffer is the channel buffer size for stdout lines.
	OutputBuffer int

	// ScannerBuffer is the maximum line size in bytes for the stdout scanner.
	ScannerBuffer int

	// GracePeriod is the duration to wait after SIGTERM before sending SIGKILL.
	GracePeriod time.Duration

	// Stderr receives the subprocess's standard error. Nil discards it.
	Stderr io.Writer

	// Env is the subprocess environment. Nil inherits the parent's.
	Env []string
}

// Option configures a process at Start time.
type Option func(*Options)

// WithOutputBuffer sets the channel buffer size for stdout lines.
// Values <= 0 are ignored.
func WithOutputBuffer(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.OutputBuffer = size
		}
	}
}

// WithScannerBuffer sets the maximum line size in bytes for the stdout scanner.
// Values <= 0 are ignored.
func WithScannerBuffer(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.ScannerBuffer = size
		}
	}
}

// WithGracePeriod sets the duration to wait after SIGTERM before sending SIGKILL.
// Values <= 0 are ignored.
func WithGracePeriod(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.GracePeriod = d
		}
	}
}

// WithStderr forwards the subprocess's standard error to w.
func WithStderr(w io.Writer) Option {
	return func(o *Options) { o.Stderr = w }
}

// WithEnv sets the subprocess environment.
func WithEnv(env []string) Option {
	return func(o *Options) { o.Env = env }
}

// ResolveOptions applies opts over the defaults.
func ResolveOptions(opts ...Option) Options {
	o := Options{
		OutputBuffer:  defaultOutputBuffer,
		ScannerBuffer: defaultScannerBuffer,
		GracePeriod:   defaultGracePeriod,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
