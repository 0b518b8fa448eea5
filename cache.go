// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package dispatch

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/gogpu/dispatch/internal/cache"
)

// loaderEntry is the cached outcome of building a shape: a loader, or the
// permanent error that prevents one.
type loaderEntry struct {
	loader *Loader
	err    error
}

// LoaderCache holds one Loader per shape, built on first use and kept for the
// lifetime of the cache.
//
// Builds are serialized per shard, so each shape is planned and compiled at
// most once even under concurrent first use. A shape that fails to build is
// cached with its error and never rebuilt.
//
// LoaderCache is safe for concurrent use. It is usually owned by a
// Dispatcher; share one between dispatchers with [WithLoaderCache].
type LoaderCache struct {
	loaders *cache.Sharded[reflect.Type, *loaderEntry]

	// logger overrides the package logger when non-nil.
	logger *slog.Logger
}

// LoaderCacheStats holds loader cache statistics.
type LoaderCacheStats struct {
	// Shapes is the number of cached shapes, including failed ones.
	Shapes int

	// Hits is the number of lookups served from the cache.
	Hits uint64

	// Misses is the number of lookups that built a loader.
	Misses uint64

	// HitRate is Hits / (Hits + Misses), or 0 before any lookup.
	HitRate float64
}

// NewLoaderCache creates an empty loader cache that logs through [Logger].
func NewLoaderCache() *LoaderCache {
	return newLoaderCache(nil)
}

func newLoaderCache(logger *slog.Logger) *LoaderCache {
	return &LoaderCache{
		loaders: cache.NewSharded[reflect.Type, *loaderEntry](shapeHasher),
		logger:  logger,
	}
}

// shapeHasher selects a shard by the shape's qualified name. Distinct types
// with equal names only share a shard; the map key is the type itself.
func shapeHasher(t reflect.Type) uint64 {
	return cache.StringHasher(t.PkgPath() + "." + t.String())
}

func (c *LoaderCache) log() *slog.Logger {
	return loggerOr(c.logger)
}

// Loader returns the loader for shape, building it on first use from the
// members reported by [Members].
//
// A shape with an invalid member returns a *ClassificationError now and on
// every later call.
func (c *LoaderCache) Loader(shape reflect.Type) (*Loader, error) {
	if shape == nil || shape.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, shape)
	}
	e := c.loaders.GetOrCreate(shape, func() *loaderEntry {
		members, err := Members(shape)
		if err != nil {
			return c.failed(shape, err)
		}
		return c.build(shape, members)
	})
	return e.loader, e.err
}

// Register builds the loader for shape from an externally supplied member
// list, for callers that discover members themselves.
//
// Instance members are matched to the top-level struct field of the same
// name; their Type may be left nil. Static members must come from [Static].
// If shape is already cached, the cached loader is kept and returned and
// members is ignored. Register counts toward Stats like Loader does.
func (c *LoaderCache) Register(shape reflect.Type, members []Member) (*Loader, error) {
	if shape == nil || shape.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShape, shape)
	}
	e := c.loaders.GetOrCreate(shape, func() *loaderEntry {
		resolved, err := resolveMembers(shape, members)
		if err != nil {
			return c.failed(shape, err)
		}
		return c.build(shape, resolved)
	})
	return e.loader, e.err
}

// Len returns the number of cached shapes.
func (c *LoaderCache) Len() int {
	return c.loaders.Len()
}

// Stats returns current cache statistics.
func (c *LoaderCache) Stats() LoaderCacheStats {
	s := c.loaders.Stats()
	return LoaderCacheStats{Shapes: s.Len, Hits: s.Hits, Misses: s.Misses, HitRate: s.HitRate}
}

func (c *LoaderCache) build(shape reflect.Type, members []Member) *loaderEntry {
	plan, err := BuildPlan(shape, members)
	if err != nil {
		return c.failed(shape, err)
	}
	l := compileLoader(plan, members)
	c.log().Debug("dispatch: loader compiled",
		"shape", shape.String(),
		"members", len(members),
		"resources", plan.ResourceCount,
		"constant_bytes", plan.ConstantBufferSize)
	return &loaderEntry{loader: l}
}

func (c *LoaderCache) failed(shape reflect.Type, err error) *loaderEntry {
	c.log().Warn("dispatch: shape cannot be dispatched",
		"shape", shape.String(),
		"err", err)
	return &loaderEntry{err: err}
}

// resolveMembers fills in field offsets and types of instance members.
func resolveMembers(shape reflect.Type, members []Member) ([]Member, error) {
	out := make([]Member, len(members))
	seen := make(map[string]bool, len(members))

	for i, m := range members {
		if seen[m.Name] {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateMember, shape, m.Name)
		}
		seen[m.Name] = true

		if m.Static {
			if m.ptr == nil || m.Type == nil {
				return nil, fmt.Errorf("%w: %s.%s", ErrInvalidStatic, shape, m.Name)
			}
			out[i] = m
			continue
		}

		f, ok := shape.FieldByName(m.Name)
		if !ok || len(f.Index) != 1 {
			return nil, fmt.Errorf("%w: %s has no field %s", ErrInvalidShape, shape, m.Name)
		}
		if m.Type != nil && m.Type != f.Type {
			return nil, fmt.Errorf("%w: %s.%s is %s, not %s", ErrInvalidShape, shape, m.Name, f.Type, m.Type)
		}
		m.Type = f.Type
		m.offset = f.Offset
		out[i] = m
	}

	return out, nil
}
