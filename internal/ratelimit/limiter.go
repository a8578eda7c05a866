// Package ratelimit bounds outbound CAN frame frequency per address and
// globally, using rolling timestamp windows with burst-token relief.
// Rate limit denials are never overridable: the limiter protects the bus
// itself, not policy.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Decision is the outcome of a rate limit check. Denials carry a reason
// string for audit and user output.
type Decision struct {
	Allowed bool
	Reason  string
}

// Limiter tracks send timestamps in a rolling window, globally and per
// address. An address that stays well under its limit accrues burst tokens,
// allowing short bursts without loosening the steady-state cap. Safe for
// concurrent use; the check and the bookkeeping update are one atomic step.
type Limiter struct {
	mu        sync.Mutex
	cfg       Config
	critical  map[uint32]bool
	global    []time.Time
	perAddr   map[uint32][]time.Time
	tokens    map[uint32]int
	lastPurge time.Time
}

// New creates a limiter from the given config. Addresses in
// cfg.CriticalAddresses get the lower CriticalAddressLimit.
func New(cfg Config) *Limiter {
	critical := make(map[uint32]bool, len(cfg.CriticalAddresses))
	for _, addr := range cfg.CriticalAddresses {
		critical[addr] = true
	}
	return &Limiter{
		cfg:      cfg,
		critical: critical,
		perAddr:  make(map[uint32][]time.Time),
		tokens:   make(map[uint32]int),
	}
}

// CheckAndRecord decides whether a send to address may proceed at time now,
// and on allow records the send in both windows. The decision and the state
// update are a single atomic unit.
func (l *Limiter) CheckAndRecord(address uint32, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Amortized purge: old timestamps are dropped at most every tenth of
	// the window, so windows stay bounded without a purge on every call.
	if now.Sub(l.lastPurge) > l.cfg.Window()/10 {
		l.purge(now)
		l.lastPurge = now
	}

	if len(l.global) >= l.cfg.GlobalLimit {
		return Decision{
			Reason: fmt.Sprintf("global rate limit exceeded (%d msg per %v)", l.cfg.GlobalLimit, l.cfg.Window()),
		}
	}

	limit := l.cfg.PerAddressLimit
	if l.critical[address] {
		limit = l.cfg.CriticalAddressLimit
	}

	count := len(l.perAddr[address])
	if count >= limit {
		if l.tokensFor(address) <= 0 {
			return Decision{
				Reason: fmt.Sprintf("rate limit exceeded for 0x%03X (%d msg per %v)", address, limit, l.cfg.Window()),
			}
		}
		l.tokens[address] = l.tokensFor(address) - 1
		l.record(address, now)
		return Decision{Allowed: true}
	}

	l.record(address, now)

	// A sender under half its limit earns back one burst token per send,
	// up to capacity.
	if len(l.perAddr[address]) < limit/2 {
		if t := l.tokensFor(address); t < l.cfg.BurstCapacity {
			l.tokens[address] = t + 1
		}
	}

	return Decision{Allowed: true}
}

// record appends now to the global and per-address windows. Caller holds mu.
func (l *Limiter) record(address uint32, now time.Time) {
	l.global = append(l.global, now)
	l.perAddr[address] = append(l.perAddr[address], now)
}

// tokensFor returns the burst token balance for an address. Addresses start
// with a full bucket. Caller holds mu.
func (l *Limiter) tokensFor(address uint32) int {
	if t, ok := l.tokens[address]; ok {
		return t
	}
	return l.cfg.BurstCapacity
}

// purge drops timestamps older than the window and deletes empty address
// windows so the per-address map cannot grow unbounded. Caller holds mu.
func (l *Limiter) purge(now time.Time) {
	cutoff := now.Add(-l.cfg.Window())

	l.global = trimBefore(l.global, cutoff)

	for addr, times := range l.perAddr {
		trimmed := trimBefore(times, cutoff)
		if len(trimmed) == 0 {
			delete(l.perAddr, addr)
			continue
		}
		l.perAddr[addr] = trimmed
	}
}

// trimBefore removes leading timestamps at or before cutoff. Timestamps are
// appended in order, so a prefix scan is enough.
func trimBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	return append(times[:0:0], times[i:]...)
}

// Snapshot is a read-only view of limiter state for stats output.
type Snapshot struct {
	GlobalCount          int
	GlobalLimit          int
	PerAddressLimit      int
	CriticalAddressLimit int
	BurstCapacity        int
	Window               time.Duration
	ActiveAddresses      int
	AddressCounts        map[uint32]int
	BurstTokens          map[uint32]int
}

// Stats returns a snapshot of counts within the window at time now. It never
// mutates limiter state; counting applies the window cutoff without purging,
// so repeated calls cannot change subsequent decisions.
func (l *Limiter) Stats(now time.Time) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.cfg.Window())
	snap := Snapshot{
		GlobalCount:          countAfter(l.global, cutoff),
		GlobalLimit:          l.cfg.GlobalLimit,
		PerAddressLimit:      l.cfg.PerAddressLimit,
		CriticalAddressLimit: l.cfg.CriticalAddressLimit,
		BurstCapacity:        l.cfg.BurstCapacity,
		Window:               l.cfg.Window(),
		AddressCounts:        make(map[uint32]int),
		BurstTokens:          make(map[uint32]int),
	}
	for addr, times := range l.perAddr {
		if n := countAfter(times, cutoff); n > 0 {
			snap.AddressCounts[addr] = n
		}
	}
	snap.ActiveAddresses = len(snap.AddressCounts)
	// Only below-capacity balances are interesting; a full bucket is the
	// resting state.
	for addr, t := range l.tokens {
		if t < l.cfg.BurstCapacity {
			snap.BurstTokens[addr] = t
		}
	}
	return snap
}

// countAfter counts timestamps strictly after cutoff.
func countAfter(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

// Reset clears all windows and burst tokens. Explicit operator action only;
// nothing in the limiter resets implicitly.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.global = nil
	l.perAddr = make(map[uint32][]time.Time)
	l.tokens = make(map[uint32]int)
	l.lastPurge = time.Time{}
}
