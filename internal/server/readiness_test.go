package server

import (
	"context"
	"errors"
	"testing"

	"github.com/scour-io/scour/internal/metadata"
	"github.com/scour-io/scour/internal/objectstore"
)

func TestMetadataStoreChecker_Ready(t *testing.T) {
	store := metadata.NewMemoryStore()
	defer store.Close()

	c := NewMetadataStoreChecker(store)
	if c.Name() != "metadata_store" {
		t.Errorf("unexpected name %q", c.Name())
	}
	if err := c.CheckReady(context.Background()); err != nil {
		t.Errorf("expected ready, got %v", err)
	}
}

func TestMetadataStoreChecker_StoreDown(t *testing.T) {
	store := metadata.NewMemoryStore()
	store.Close()

	c := NewMetadataStoreChecker(store)
	if err := c.CheckReady(context.Background()); err == nil {
		t.Error("expected error from closed store")
	}
}

func TestMetadataStoreChecker_NotConfigured(t *testing.T) {
	c := NewMetadataStoreChecker(nil)
	if err := c.CheckReady(context.Background()); err == nil {
		t.Error("expected error when store is nil")
	}
}

func TestObjectStoreChecker_Ready(t *testing.T) {
	store := objectstore.NewMockStore()

	c := NewObjectStoreChecker(store)
	if c.Name() != "object_store" {
		t.Errorf("unexpected name %q", c.Name())
	}
	if err := c.CheckReady(context.Background()); err != nil {
		t.Errorf("expected ready, got %v", err)
	}
}

func TestObjectStoreChecker_NotConfigured(t *testing.T) {
	c := NewObjectStoreChecker(nil)
	if err := c.CheckReady(context.Background()); err == nil {
		t.Error("expected error when store is nil")
	}
}

func TestFuncChecker(t *testing.T) {
	boom := errors.New("boom")
	c := NewFuncChecker("custom", func(context.Context) error { return boom })

	if c.Name() != "custom" {
		t.Errorf("unexpected name %q", c.Name())
	}
	if err := c.CheckReady(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}

	empty := NewFuncChecker("empty", nil)
	if err := empty.CheckReady(context.Background()); err != nil {
		t.Errorf("expected nil from empty checker, got %v", err)
	}
}
