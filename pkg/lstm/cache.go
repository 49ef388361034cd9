package lstm

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"

	"github.com/igolaizola/xenotune/pkg/mode"
	"golang.org/x/sync/singleflight"
)

// Cache keeps one trained model per mode for the lifetime of the process.
// Concurrent first requests for the same mode share a single training run.
// Models are read-only once cached.
type Cache struct {
	Seed    int64
	Options Options

	mu     sync.Mutex
	models map[string]*Model
	group  singleflight.Group
	builds int
}

func NewCache(seed int64, opts Options) *Cache {
	return &Cache{
		Seed:    seed,
		Options: opts,
		models:  map[string]*Model{},
	}
}

// Get returns the cached model for key or builds it.
func (c *Cache) Get(key string, build func() (*Model, error)) (*Model, error) {
	c.mu.Lock()
	if m, ok := c.models[key]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.Lock()
		if m, ok := c.models[key]; ok {
			c.mu.Unlock()
			return m, nil
		}
		c.builds++
		if c.models == nil {
			c.models = map[string]*Model{}
		}
		c.mu.Unlock()

		m, err := build()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.models[key] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// Model returns the model of the mode, training it on first use. The
// training seed depends only on the cache seed and the key so the model is
// the same whichever call builds it.
func (c *Cache) Model(m *mode.Mode, mel mode.Melody) (*Model, error) {
	key := fmt.Sprintf("%s/%s/%d", m.Name, mel.Corpus, mel.Epochs)
	return c.Get(key, func() (*Model, error) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(key))
		rng := rand.New(rand.NewSource(c.Seed ^ int64(h.Sum64())))
		return TrainMode(rng, m, mel, c.Options)
	})
}

// Builds returns how many training runs were started.
func (c *Cache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}
