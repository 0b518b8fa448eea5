// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/gpucontext"
)

// DispatchData is the marshaled state of one dispatch: a resource handle per
// slot and the packed constant buffer.
//
// DispatchData is owned by the caller that assembled it. Call Release once the
// GPU command has been recorded; the buffers may be handed to another dispatch
// afterwards.
type DispatchData struct {
	handles *[]uintptr
	values  *[]byte

	resourceCount int
	valueSize     int

	// pool receives the buffers on Release; nil when pooling is disabled.
	pool *bufferPool
}

// Resources returns the descriptor handles, one per resource slot.
// Returns nil after Release.
func (d *DispatchData) Resources() []uintptr {
	if d.handles == nil {
		return nil
	}
	return (*d.handles)[:d.resourceCount]
}

// ResourceCount returns the number of resource slots.
func (d *DispatchData) ResourceCount() int {
	return d.resourceCount
}

// Values returns the constant buffer bytes, starting with the dispatch
// dimensions. Returns nil after Release.
func (d *DispatchData) Values() []byte {
	if d.values == nil {
		return nil
	}
	return (*d.values)[:d.valueSize]
}

// ValueSize returns the number of constant buffer bytes.
func (d *DispatchData) ValueSize() int {
	return d.valueSize
}

// Dimensions returns the dispatch extents stored at the head of the
// constant buffer.
func (d *DispatchData) Dimensions() (x, y, z uint32) {
	v := d.Values()
	if len(v) < DimensionsSize {
		return 0, 0, 0
	}
	le := binary.LittleEndian
	return le.Uint32(v[0:4]), le.Uint32(v[4:8]), le.Uint32(v[8:12])
}

// Release returns the buffers to the pool they came from.
// Release is idempotent; the data must not be used afterwards.
func (d *DispatchData) Release() {
	if d.pool != nil {
		d.pool.putHandles(d.handles)
		d.pool.putValues(d.values)
	}
	d.handles = nil
	d.values = nil
	d.pool = nil
}

// Dispatcher assembles dispatch data for shaders.
//
// A Dispatcher owns (or shares) the loader cache and the buffer pool for the
// dispatches it issues. It is safe for concurrent use; every Assemble call
// gets its own buffers.
type Dispatcher struct {
	loaders *LoaderCache
	pool    *bufferPool
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dispatcher{
		loaders: o.loaders,
		logger:  o.logger,
	}
	if d.loaders == nil {
		d.loaders = newLoaderCache(o.logger)
	}
	if o.pooling {
		d.pool = newBufferPool()
	}
	return d
}

func (d *Dispatcher) log() *slog.Logger {
	return loggerOr(d.logger)
}

// Loaders returns the loader cache used by the Dispatcher.
func (d *Dispatcher) Loaders() *LoaderCache {
	return d.loaders
}

// Prepare builds the loader for the shader's shape and returns its layout.
// Call it at startup to report invalid captured members before the first
// dispatch.
func (d *Dispatcher) Prepare(shader any) (*Plan, error) {
	if shader == nil {
		return nil, ErrNilShader
	}
	l, err := d.loaders.Loader(ShapeOf(shader))
	if err != nil {
		return nil, err
	}
	return l.Plan(), nil
}

// Assemble marshals shader for a dispatch of x*y*z threads on device.
//
// shader is a shader struct or a pointer to one. The returned data holds the
// descriptor handle of every captured resource and a constant buffer with x,
// y and z as little-endian 32-bit integers at offset 0, followed by every
// captured value. On error no data is returned.
func (d *Dispatcher) Assemble(device gpucontext.Device, shader any, x, y, z int) (*DispatchData, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if shader == nil {
		return nil, ErrNilShader
	}
	if !validExtent(x) || !validExtent(y) || !validExtent(z) {
		return nil, fmt.Errorf("%w: (%d, %d, %d)", ErrInvalidDimensions, x, y, z)
	}

	loader, err := d.loaders.Loader(ShapeOf(shader))
	if err != nil {
		return nil, err
	}
	base, err := loader.base(shader)
	if err != nil {
		return nil, err
	}

	data := d.acquire(loader.plan)
	values := (*data.values)[:data.valueSize]
	clear(values)

	le := binary.LittleEndian
	le.PutUint32(values[0:4], uint32(x))  //nolint:gosec // validated by validExtent
	le.PutUint32(values[4:8], uint32(y))  //nolint:gosec // validated by validExtent
	le.PutUint32(values[8:12], uint32(z)) //nolint:gosec // validated by validExtent

	if err := loader.load(device, base, (*data.handles)[:data.resourceCount], values); err != nil {
		data.Release()
		d.log().Debug("dispatch: rejected",
			"shape", loader.shape.String(),
			"err", err)
		return nil, err
	}

	return data, nil
}

// AssembleFor is Assemble on the device of provider.
func (d *Dispatcher) AssembleFor(provider gpucontext.DeviceProvider, shader any, x, y, z int) (*DispatchData, error) {
	if provider == nil {
		return nil, ErrNilDevice
	}
	return d.Assemble(provider.Device(), shader, x, y, z)
}

// acquire returns dispatch data with buffers sized for plan.
func (d *Dispatcher) acquire(plan *Plan) *DispatchData {
	data := &DispatchData{
		resourceCount: plan.ResourceCount,
		valueSize:     plan.ConstantBufferSize,
		pool:          d.pool,
	}
	if d.pool != nil {
		data.handles = d.pool.getHandles(plan.ResourceCount)
		data.values = d.pool.getValues(plan.ConstantBufferSize)
		return data
	}
	handles := make([]uintptr, plan.ResourceCount)
	values := make([]byte, plan.ConstantBufferSize)
	data.handles = &handles
	data.values = &values
	return data
}

func validExtent(n int) bool {
	return n >= 0 && n <= math.MaxInt32
}
