package server

import (
	"context"
	"errors"

	"github.com/scour-io/scour/internal/metadata"
	"github.com/scour-io/scour/internal/objectstore"
)

// metadataProbeKey is a key that never exists; the probe only verifies that
// the store responds.
const metadataProbeKey = "/scour/v1/health-check"

// MetadataStoreChecker implements ReadinessChecker for the metadata store.
type MetadataStoreChecker struct {
	store metadata.Store
}

// NewMetadataStoreChecker creates a new MetadataStoreChecker.
func NewMetadataStoreChecker(store metadata.Store) *MetadataStoreChecker {
	return &MetadataStoreChecker{store: store}
}

func (c *MetadataStoreChecker) Name() string {
	return "metadata_store"
}

// CheckReady verifies the metadata store is accessible. A missing probe key
// is the expected outcome; any error means the store is unreachable.
func (c *MetadataStoreChecker) CheckReady(ctx context.Context) error {
	if c.store == nil {
		return errors.New("metadata store not configured")
	}
	_, err := c.store.Get(ctx, metadataProbeKey)
	return err
}

// ObjectStoreChecker implements ReadinessChecker for the object store.
type ObjectStoreChecker struct {
	store objectstore.Store
}

// NewObjectStoreChecker creates a new ObjectStoreChecker.
func NewObjectStoreChecker(store objectstore.Store) *ObjectStoreChecker {
	return &ObjectStoreChecker{store: store}
}

func (c *ObjectStoreChecker) Name() string {
	return "object_store"
}

// CheckReady verifies the object store is accessible by listing a prefix
// that never has objects. An empty result means the bucket responded.
func (c *ObjectStoreChecker) CheckReady(ctx context.Context) error {
	if c.store == nil {
		return errors.New("object store not configured")
	}
	_, err := c.store.List(ctx, "scour-health-check-nonexistent/")
	if err != nil {
		// A wrapped NotFound just means the prefix is empty.
		var objErr *objectstore.ObjectError
		if errors.As(err, &objErr) && errors.Is(objErr.Err, objectstore.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// FuncChecker is a ReadinessChecker that wraps a function.
// Useful for ad-hoc checks or testing.
type FuncChecker struct {
	name  string
	check func(context.Context) error
}

// NewFuncChecker creates a new FuncChecker with the given name and check
// function.
func NewFuncChecker(name string, check func(context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, check: check}
}

func (c *FuncChecker) Name() string {
	return c.name
}

// CheckReady calls the wrapped function.
func (c *FuncChecker) CheckReady(ctx context.Context) error {
	if c.check == nil {
		return nil
	}
	return c.check(ctx)
}

var (
	_ ReadinessChecker = (*MetadataStoreChecker)(nil)
	_ ReadinessChecker = (*ObjectStoreChecker)(nil)
	_ ReadinessChecker = (*FuncChecker)(nil)
)
