package task

import (
	"math/rand"
	"sync"
	"time"
)

// BackoffPolicy computes the delay before a transient failure is retried:
// exponential growth from Base capped at Cap, perturbed by a uniform
// ± Jitter fraction. Base and Cap of zero collapse every delay to zero,
// which is how tests run the production retry path without sleeping.
type BackoffPolicy struct {
	// Base is the delay for the first retry.
	Base time.Duration

	// Cap is the upper bound the exponential growth is clamped to.
	Cap time.Duration

	// Jitter is the fraction (0..1) of random perturbation applied to the
	// computed delay.
	Jitter float64

	// rnd is the seeded source used when determinism is required; nil means
	// the process-global source.
	rnd *rand.Rand
	mu  sync.Mutex
}

// NewBackoffPolicy returns a policy drawing jitter from the process-global
// random source.
func NewBackoffPolicy(base, cap time.Duration, jitter float64) *BackoffPolicy {
	return &BackoffPolicy{Base: base, Cap: cap, Jitter: jitter}
}

// NewSeededBackoffPolicy returns a policy whose jitter is drawn from a
// deterministic seeded source, so backoff schedules are reproducible in tests.
func NewSeededBackoffPolicy(base, cap time.Duration, jitter float64, seed int64) *BackoffPolicy {
	return &BackoffPolicy{
		Base:   base,
		Cap:    cap,
		Jitter: jitter,
		rnd:    rand.New(rand.NewSource(seed)),
	}
}

// NextDelay computes the delay to apply after the retryCount-th transient
// failure: min(Cap, Base * 2^retryCount), jittered. The result is never
// negative.
func (p *BackoffPolicy) NextDelay(retryCount int) time.Duration {
	delay := p.exponential(retryCount)

	if p.Jitter > 0 && delay > 0 {
		// Uniform draw in [-Jitter, +Jitter].
		offset := p.Jitter * (2*p.float64() - 1)
		delay = time.Duration(float64(delay) * (1 + offset))
	}

	if delay < 0 {
		delay = 0
	}
	return delay
}

// exponential returns min(Cap, Base * 2^retryCount) with overflow
// protection for large retry counts.
func (p *BackoffPolicy) exponential(retryCount int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	if retryCount < 0 {
		retryCount = 0
	}

	shift := uint(retryCount)
	// 2^63 overflows time.Duration; anything past the cap is the cap.
	if shift > 62 {
		return p.Cap
	}

	delay := p.Base << shift
	if delay <= 0 || (p.Cap > 0 && delay > p.Cap) {
		return p.Cap
	}
	return delay
}

// float64 draws from the seeded source when present, the global one otherwise.
func (p *BackoffPolicy) float64() float64 {
	if p.rnd == nil {
		return rand.Float64()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Float64()
}
