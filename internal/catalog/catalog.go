// Package catalog serves the public doctor directory through a short-lived
// in-process cache. Slot availability never passes through here.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/wolfman30/docbook-web/internal/apiclient"
	"github.com/wolfman30/docbook-web/pkg/logging"
)

const (
	specializationsKey = "specializations"
	doctorsPrefix      = "doctors:"
	doctorPrefix       = "doctor:"
)

// API is the public directory slice of the backend client.
type API interface {
	ListDoctors(ctx context.Context, specialization string) ([]apiclient.Doctor, error)
	GetDoctor(ctx context.Context, id string) (*apiclient.Doctor, error)
	ListSpecializations(ctx context.Context) ([]string, error)
}

// Catalog reads doctors and specializations, caching successful replies for
// ttl. A nil cache (ttl <= 0) passes every read through.
type Catalog struct {
	api    API
	cache  *expirable.LRU[string, any]
	logger *logging.Logger
}

// New builds a catalog. ttl <= 0 disables caching.
func New(api API, size int, ttl time.Duration, logger *logging.Logger) *Catalog {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Catalog{api: api, logger: logger}
	if ttl > 0 {
		if size <= 0 {
			size = 256
		}
		c.cache = expirable.NewLRU[string, any](size, nil, ttl)
	} else {
		logger.Info("catalog cache disabled")
	}
	return c
}

// Doctors lists doctors, optionally for one specialization.
func (c *Catalog) Doctors(ctx context.Context, specialization string) ([]apiclient.Doctor, error) {
	specialization = strings.TrimSpace(specialization)
	key := doctorsPrefix + specialization
	if cached, ok := c.get(key); ok {
		return cloneDoctors(cached.([]apiclient.Doctor)), nil
	}
	doctors, err := c.api.ListDoctors(ctx, specialization)
	if err != nil {
		return nil, fmt.Errorf("catalog: doctors: %w", err)
	}
	c.put(key, cloneDoctors(doctors))
	return doctors, nil
}

// Doctor returns one doctor profile.
func (c *Catalog) Doctor(ctx context.Context, id string) (*apiclient.Doctor, error) {
	key := doctorPrefix + id
	if cached, ok := c.get(key); ok {
		d := cached.(apiclient.Doctor)
		return &d, nil
	}
	doctor, err := c.api.GetDoctor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: doctor %s: %w", id, err)
	}
	c.put(key, *doctor)
	return doctor, nil
}

// Specializations lists the distinct specializations.
func (c *Catalog) Specializations(ctx context.Context) ([]string, error) {
	if cached, ok := c.get(specializationsKey); ok {
		return append([]string(nil), cached.([]string)...), nil
	}
	specs, err := c.api.ListSpecializations(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: specializations: %w", err)
	}
	c.put(specializationsKey, append([]string(nil), specs...))
	return specs, nil
}

// Purge drops every cached entry. Admin doctor writes call it.
func (c *Catalog) Purge() {
	if c.cache == nil {
		return
	}
	c.cache.Purge()
	c.logger.Debug("catalog cache purged")
}

func (c *Catalog) get(key string) (any, bool) {
	if c.cache == nil {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if ok {
		c.logger.Debug("catalog cache hit", "key", key)
	}
	return v, ok
}

func (c *Catalog) put(key string, v any) {
	if c.cache == nil {
		return
	}
	c.cache.Add(key, v)
}

func cloneDoctors(in []apiclient.Doctor) []apiclient.Doctor {
	if in == nil {
		return nil
	}
	out := make([]apiclient.Doctor, len(in))
	copy(out, in)
	return out
}
