// Package sim drives a Slot-backed world of bank-style accounts under
// configurable concurrent load and verifies two things the container
// promises: no reader ever observes a torn snapshot, and no committed
// update is lost.
package sim

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fastrand"
	"golang.org/x/sync/errgroup"

	"github.com/aradilov/lockfree"
)

// account is the value stored in every slot. Version counts committed
// updates and Checksum is derived from all other fields, so a reader can
// detect a snapshot assembled from two different writes by recomputing it.
type account struct {
	ID       int    `json:"id"`
	Version  uint64 `json:"version"`
	Balance  int64  `json:"balance"`
	Credits  int64  `json:"credits"`
	Debits   int64  `json:"debits"`
	Checksum uint64 `json:"checksum"`
}

func newAccount(id int) account {
	a := account{ID: id}
	a.Checksum = a.sum()
	return a
}

func (a *account) sum() uint64 {
	var buf [40]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(a.ID))
	binary.LittleEndian.PutUint64(buf[8:], a.Version)
	binary.LittleEndian.PutUint64(buf[16:], uint64(a.Balance))
	binary.LittleEndian.PutUint64(buf[24:], uint64(a.Credits))
	binary.LittleEndian.PutUint64(buf[32:], uint64(a.Debits))
	return xxhash.Sum64(buf[:])
}

func (a *account) valid() bool {
	return a.Balance == a.Credits-a.Debits && a.Checksum == a.sum()
}

// tuning is the live-reloadable behavior profile shared by all workers. The
// steering goroutine republishes it periodically; workers pick up the new
// snapshot on their next iteration without any coordination.
type tuning struct {
	Generation uint64 `json:"generation"`
	LoadShare  uint32 `json:"load_share"`  // percent of reads that copy the value out
	WriteBurst uint32 `json:"write_burst"` // updates per writer iteration
	MaxAmount  uint32 `json:"max_amount"`  // upper bound for a single credit or debit
}

var defaultTuning = tuning{LoadShare: 80, WriteBurst: 1, MaxAmount: 1000}

// World is a fixed set of account slots plus the goroutines hammering them.
type World struct {
	cfg Workload

	accounts []lockfree.Slot[account]
	profile  lockfree.Slot[tuning]

	writes atomic.Uint64
	reads  atomic.Uint64
	torn   atomic.Uint64
}

func NewWorld(cfg Workload) *World {
	w := &World{
		cfg:      cfg,
		accounts: make([]lockfree.Slot[account], cfg.Slots),
	}
	for i := range w.accounts {
		w.accounts[i].Store(newAccount(i))
	}
	return w
}

// tuning returns the current profile, falling back to the built-in defaults
// while none is published.
func (w *World) tuning() tuning {
	if t, ok := w.profile.TryLoad(); ok {
		return t
	}
	return defaultTuning
}

// Run drives the workload until ctx is done or a verification failure stops
// it, then audits the stopped world.
func (w *World) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.cfg.Writers; i++ {
		i := i
		eg.Go(func() error { return w.writer(ctx, i) })
	}
	for i := 0; i < w.cfg.Readers; i++ {
		i := i
		eg.Go(func() error { return w.reader(ctx, i) })
	}
	eg.Go(func() error { return w.steer(ctx) })

	if err := eg.Wait(); err != nil &&
		!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return w.audit()
}

func (w *World) writer(ctx context.Context, id int) error {
	var rng fastrand.RNG
	rng.Seed(uint32(id)*2654435761 + 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tun := w.tuning()
		burst := tun.WriteBurst
		if burst == 0 {
			burst = 1
		}

		for n := uint32(0); n < burst; n++ {
			idx := int(rng.Uint32n(uint32(len(w.accounts))))
			amount := int64(rng.Uint32n(tun.MaxAmount)) + 1
			credit := rng.Uint32n(2) == 0

			w.accounts[idx].Update(func(a *account) {
				if credit {
					a.Credits += amount
				} else {
					a.Debits += amount
				}
				a.Balance = a.Credits - a.Debits
				a.Version++
				a.Checksum = a.sum()
			})
			w.writes.Add(1)
			WritesTotal.Inc()
		}
	}
}

func (w *World) reader(ctx context.Context, id int) error {
	var rng fastrand.RNG
	rng.Seed(uint32(id)*40503 + 7)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		tun := w.tuning()
		idx := int(rng.Uint32n(uint32(len(w.accounts))))
		s := &w.accounts[idx]

		var ok bool
		if rng.Uint32n(100) < tun.LoadShare {
			a := s.Load()
			ok = a.valid()
		} else {
			ok = lockfree.Read(s, func(a *account) bool { return a.valid() })
		}
		w.reads.Add(1)
		ReadsTotal.Inc()

		if !ok {
			w.torn.Add(1)
			TornReads.Inc()
			return fmt.Errorf("reader %d: torn snapshot in account %d", id, idx)
		}
	}
}

// steer republishes the tuning profile on a ticker. Most ticks publish a
// fresh profile; occasionally it reverts to the defaults, drops the profile
// entirely, or publishes a neutral one, so the workers keep exercising the
// absence and zero-value paths.
func (w *World) steer(ctx context.Context) error {
	var rng fastrand.RNG
	rng.Seed(0x9e3779b9)

	tick := time.NewTicker(w.cfg.RetuneEvery)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}

		switch rng.Uint32n(12) {
		case 0:
			old := w.profile.Swap(defaultTuning)
			ProfileWrites.WithLabelValues("swap").Inc()
			log.Debug().Uint64("displaced", old.Generation).Msg("tuning reverted to defaults")
		case 1:
			w.profile.Reset()
			ProfileWrites.WithLabelValues("reset").Inc()
			log.Debug().Msg("tuning dropped")
		case 2:
			w.profile.Init()
			ProfileWrites.WithLabelValues("init").Inc()
			log.Debug().Msg("tuning neutralized")
		default:
			next := tuning{
				LoadShare:  50 + rng.Uint32n(51),
				WriteBurst: 1 + rng.Uint32n(4),
				MaxAmount:  100 + rng.Uint32n(10_000),
			}
			gen := lockfree.Update(&w.profile, func(t *tuning) uint64 {
				g := t.Generation + 1
				*t = next
				t.Generation = g
				return g
			})
			ProfileWrites.WithLabelValues("update").Inc()
			log.Debug().Uint64("generation", gen).Uint32("load_share", next.LoadShare).Msg("tuning published")
		}
	}
}

// audit cross-checks the stopped world: every account snapshot must still
// verify, and the sum of their versions must equal the number of committed
// updates, or some update was lost.
func (w *World) audit() error {
	var versions uint64
	var balance int64

	for i := range w.accounts {
		a, ok := w.accounts[i].TryLoad()
		if !ok {
			return fmt.Errorf("account %d vanished", i)
		}
		if !a.valid() {
			return fmt.Errorf("account %d fails verification after shutdown: %+v", i, a)
		}
		versions += a.Version
		balance += a.Balance
	}

	if writes := w.writes.Load(); versions != writes {
		return fmt.Errorf("lost updates: %d committed, %d visible", writes, versions)
	}
	if torn := w.torn.Load(); torn != 0 {
		return fmt.Errorf("%d torn reads observed", torn)
	}

	log.Info().
		Uint64("updates", versions).
		Uint64("reads", w.reads.Load()).
		Int64("net_balance", balance).
		Msg("audit clean")
	return nil
}
