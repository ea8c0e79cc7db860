// Package cache implementa un almacén clave-valor con expiración, usado
// para estado efímero (códigos de verificación de un solo uso). Se inyecta
// como dependencia; no hay estado global de módulo.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

type TTLStore struct {
	mu      sync.Mutex
	entries map[string]entry
	done    chan struct{}
	once    sync.Once
}

// NewTTLStore crea el almacén y arranca el barrido periódico de entradas
// vencidas. Llamar Stop al cerrar la aplicación.
func NewTTLStore(sweepEvery time.Duration) *TTLStore {
	s := &TTLStore{
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go s.sweep(sweepEvery)
	return s
}

func (s *TTLStore) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for k, e := range s.entries {
				if now.After(e.expiresAt) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *TTLStore) Set(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// Get también chequea el vencimiento, por si el barrido todavía no pasó.
func (s *TTLStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return "", false
	}
	return e.value, true
}

func (s *TTLStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *TTLStore) Stop() {
	s.once.Do(func() { close(s.done) })
}
