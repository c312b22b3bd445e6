//go:build nogpu

// Package gpu - Stub used when the module is built with the nogpu tag. Every
// Context is permanently unavailable.
package gpu

import (
	"sync"
	"time"

	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
)

// Context is never available in nogpu builds.
type Context struct {
	cfg  Config
	once sync.Once
}

// NewContext returns a Context that reports ErrUnavailable.
func NewContext(cfg Config) *Context {
	return &Context{cfg: cfg}
}

func (c *Context) State() State { return StateUnavailable }

func (c *Context) AdapterName() string { return "" }

func (c *Context) Available() bool { return false }

// Init logs once and returns ErrUnavailable.
func (c *Context) Init() error {
	c.once.Do(func() {
		slogger().Info("gpu: built without GPU support")
	})
	return ErrUnavailable
}

func (c *Context) Shutdown() {}

func (c *Context) SetFenceTimeout(d time.Duration) { c.cfg.FenceTimeout = d }

// Filter always returns ErrUnavailable.
func (c *Context) Filter(in, out *images.LinearImage, p kernels.Params) error {
	return ErrUnavailable
}
