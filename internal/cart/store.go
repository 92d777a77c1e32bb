package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"Storefront/internal/catalog"
	"Storefront/internal/storage"
)

// StorageKey is the fixed key the cart is persisted under.
const StorageKey = "e-commerce-cart"

var (
	ErrAlreadyLoaded = errors.New("cart already loaded")
	ErrCorruptCart   = errors.New("stored cart is corrupt")
)

type State int32

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type Options struct {
	// Key overrides StorageKey.
	Key string
	// Coalesce lets the writer skip snapshots superseded before they were
	// saved. The last mutation is always written.
	Coalesce bool
	// SaveTimeout bounds a single storage write; zero means no bound.
	SaveTimeout time.Duration

	Log     *zap.Logger
	Metrics *Metrics
}

// Store owns the process's single cart. Mutations are serialised and
// applied to memory synchronously; persistence is a fire-and-forget
// follow-up handled by one background writer in submission order.
//
// Nothing is written until Load has completed. Callers should wait on
// Ready before treating the cart as loaded.
type Store struct {
	storage storage.Storage
	key     string
	log     *zap.Logger
	metrics *Metrics

	loadStarted atomic.Bool
	ready       chan struct{}

	mu    sync.Mutex
	cart  Cart
	state State

	// changedBeforeReady is set by a mutation applied while Uninitialized.
	changedBeforeReady bool

	subs    map[int]chan Cart
	nextSub int

	w *writer
}

func NewStore(st storage.Storage, opts Options) *Store {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	key := opts.Key
	if key == "" {
		key = StorageKey
	}

	s := &Store{
		storage: st,
		key:     key,
		log:     log,
		metrics: opts.Metrics,
		ready:   make(chan struct{}),
		cart:    Empty(),
		state:   StateUninitialized,
		subs:    make(map[int]chan Cart),
	}
	s.w = newWriter(opts.Coalesce, func(payload string) { s.save(payload, opts.SaveTimeout) })
	go s.w.run()

	return s
}

// Load reads the persisted cart once and moves the store to Ready. The
// transition happens whatever the outcome; a missing, unreadable or corrupt
// value leaves the current cart in place, and if that cart was changed
// before Ready it is saved. The returned error is informational only. A
// second call returns ErrAlreadyLoaded.
func (s *Store) Load(ctx context.Context) error {
	if !s.loadStarted.CompareAndSwap(false, true) {
		return ErrAlreadyLoaded
	}

	loaded, found, err := s.read(ctx)
	if err != nil {
		s.log.Error("failed to load cart from storage", zap.String("key", s.key), zap.Error(err))
	}

	s.mu.Lock()
	s.state = StateReady
	switch {
	case found:
		s.cart = loaded
		s.publishLocked(loaded)
	case s.changedBeforeReady:
		// Nothing usable was stored, so the early changes become the
		// persisted cart.
		s.persistLocked(s.cart)
	}
	n := len(s.cart.Items)
	s.mu.Unlock()

	s.metrics.setItems(n)
	close(s.ready)

	s.log.Info("cart ready", zap.Bool("restored", found), zap.Int("items", n))
	return err
}

func (s *Store) read(ctx context.Context) (Cart, bool, error) {
	raw, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return Cart{}, false, fmt.Errorf("load cart: %w", err)
	}
	if !ok || raw == "" {
		return Cart{}, false, nil
	}

	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Cart{}, false, fmt.Errorf("%w: %w", ErrCorruptCart, err)
	}
	return c.normalize(), true, nil
}

// Ready is closed once Load has finished.
func (s *Store) Ready() <-chan struct{} { return s.ready }

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cart returns a copy of the current cart.
func (s *Store) Cart() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// AddToCart accumulates quantity into the product's item, appending a new
// item when the product is not in the cart yet. A quantity <= 0 is ignored
// so no item ever holds a non-positive quantity.
func (s *Store) AddToCart(p catalog.Product, quantity int) Cart {
	if quantity <= 0 {
		s.log.Debug("ignoring non-positive add quantity", zap.Int("product_id", p.ID), zap.Int("quantity", quantity))
	}
	return s.mutate("add", func(c Cart) (Cart, bool) { return c.add(p, quantity) })
}

// RemoveFromCart deletes the product's item; absent ids are a no-op.
func (s *Store) RemoveFromCart(productID int) Cart {
	return s.mutate("remove", func(c Cart) (Cart, bool) { return c.remove(productID) })
}

// UpdateQuantity replaces the item's quantity. quantity <= 0 removes the
// item; an absent id is a no-op.
func (s *Store) UpdateQuantity(productID, quantity int) Cart {
	return s.mutate("update", func(c Cart) (Cart, bool) { return c.setQuantity(productID, quantity) })
}

func (s *Store) Increment(productID int) Cart {
	return s.mutate("increment", func(c Cart) (Cart, bool) {
		it, ok := c.Find(productID)
		if !ok || it.Quantity == math.MaxInt {
			return c, false
		}
		return c.setQuantity(productID, it.Quantity+1)
	})
}

// Decrement lowers the quantity by one, removing the item at zero.
func (s *Store) Decrement(productID int) Cart {
	return s.mutate("decrement", func(c Cart) (Cart, bool) {
		it, ok := c.Find(productID)
		if !ok {
			return c, false
		}
		return c.setQuantity(productID, it.Quantity-1)
	})
}

func (s *Store) ClearCart() Cart {
	return s.mutate("clear", func(c Cart) (Cart, bool) { return c.clear() })
}

// Subscribe returns a channel receiving the cart after every change and a
// func that ends the subscription. A subscriber that falls behind only
// sees the newest cart.
func (s *Store) Subscribe() (<-chan Cart, func()) {
	ch := make(chan Cart, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Close stops persistence after draining queued writes. Mutations made
// after Close change memory only.
func (s *Store) Close(ctx context.Context) error {
	s.w.close()

	select {
	case <-s.w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) mutate(op string, fn func(Cart) (Cart, bool)) Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := fn(s.cart)
	if !changed {
		return s.cart.Clone()
	}

	s.cart = next
	s.metrics.mutation(op)
	s.metrics.setItems(len(next.Items))
	s.publishLocked(next)

	if s.state == StateReady {
		s.persistLocked(next)
	} else {
		s.changedBeforeReady = true
	}
	return next.Clone()
}

// persistLocked queues the snapshot while s.mu is held, so queue order is
// mutation order.
func (s *Store) persistLocked(c Cart) {
	b, err := json.Marshal(c)
	if err != nil {
		s.log.Error("failed to encode cart", zap.Error(err))
		s.metrics.save("encode_error")
		return
	}
	if !s.w.enqueue(string(b)) {
		s.log.Warn("cart store closed, save dropped")
		s.metrics.save("dropped")
	}
}

func (s *Store) publishLocked(c Cart) {
	for _, ch := range s.subs {
		select {
		case ch <- c.Clone():
			continue
		default:
		}
		// Replace the stale value nobody has read yet.
		select {
		case <-ch:
		default:
		}
		ch <- c.Clone()
	}
}

func (s *Store) save(payload string, timeout time.Duration) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.storage.Set(ctx, s.key, payload); err != nil {
		s.log.Error("failed to save cart to storage", zap.String("key", s.key), zap.Error(err))
		s.metrics.save("error")
		return
	}
	s.metrics.save("ok")
}
