package llm

import (
	"sync"
	"sync/atomic"
)

// Shared builds one provider lazily and hands the same instance to every
// caller for the rest of the process.
//
// The first successful build is published through an atomic pointer, so the
// hot path takes no lock. A failed build is not cached: the next call tries
// again, which lets a fixed configuration recover without a restart.
type Shared struct {
	build func() (Provider, error)

	mu      sync.Mutex
	current atomic.Pointer[sharedProvider]
}

type sharedProvider struct {
	provider Provider
	client   *Client
}

// NewShared returns a Shared that calls build on first use.
func NewShared(build func() (Provider, error)) *Shared {
	return &Shared{build: build}
}

// Get returns the provider, building it on first use.
func (s *Shared) Get() (Provider, error) {
	built, err := s.load()
	if err != nil {
		return nil, err
	}
	return built.provider, nil
}

// Client returns a client over the shared provider.
func (s *Shared) Client() (*Client, error) {
	built, err := s.load()
	if err != nil {
		return nil, err
	}
	return built.client, nil
}

// Ready reports whether the provider has been built.
func (s *Shared) Ready() bool {
	return s.current.Load() != nil
}

func (s *Shared) load() (*sharedProvider, error) {
	if built := s.current.Load(); built != nil {
		return built, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if built := s.current.Load(); built != nil {
		return built, nil
	}

	provider, err := s.build()
	if err != nil {
		return nil, err
	}
	built := &sharedProvider{provider: provider, client: NewClient(provider)}
	s.current.Store(built)
	return built, nil
}
