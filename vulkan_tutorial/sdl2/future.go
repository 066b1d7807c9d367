package main

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// FenceTimeout bounds a single fence wait so a cancelled context is noticed
const FenceTimeout = 100 * time.Millisecond

// submission is one QueueSubmit and the fence it signals
type submission struct {
	fence core1_0.Fence
	// acquire semaphores the submission waited on, recycled once the fence signals
	acquired []core1_0.Semaphore
	signaled bool
	retired  bool
}

// syncPool recycles fences and acquire semaphores. Everything in it is touched from
// the render goroutine only.
type syncPool struct {
	driver core1_0.DeviceDriver
	log    logrus.FieldLogger

	freeFences     []core1_0.Fence
	freeSemaphores []core1_0.Semaphore
	pending        []*submission
	// semaphores left in an unknown state by failed frames; safe to destroy once the device is idle
	orphans []core1_0.Semaphore
}

func newSyncPool(driver core1_0.DeviceDriver, log logrus.FieldLogger) *syncPool {
	return &syncPool{driver: driver, log: log}
}

func (p *syncPool) fence() (core1_0.Fence, error) {
	if len(p.freeFences) > 0 {
		fence := p.freeFences[len(p.freeFences)-1]
		p.freeFences = p.freeFences[:len(p.freeFences)-1]
		return fence, nil
	}

	fence, _, err := p.driver.CreateFence(nil, core1_0.FenceCreateInfo{})
	if err != nil {
		return core1_0.Fence{}, errors.Wrap(err, "create fence")
	}
	return fence, nil
}

func (p *syncPool) semaphore() (core1_0.Semaphore, error) {
	if len(p.freeSemaphores) > 0 {
		semaphore := p.freeSemaphores[len(p.freeSemaphores)-1]
		p.freeSemaphores = p.freeSemaphores[:len(p.freeSemaphores)-1]
		return semaphore, nil
	}

	semaphore, _, err := p.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return core1_0.Semaphore{}, errors.Wrap(err, "create semaphore")
	}
	return semaphore, nil
}

// releaseFence returns a fence that was never submitted
func (p *syncPool) releaseFence(fence core1_0.Fence) {
	p.freeFences = append(p.freeFences, fence)
}

// releaseSemaphore returns a semaphore that was never signaled
func (p *syncPool) releaseSemaphore(semaphore core1_0.Semaphore) {
	p.freeSemaphores = append(p.freeSemaphores, semaphore)
}

func (p *syncPool) orphan(semaphores ...core1_0.Semaphore) {
	p.orphans = append(p.orphans, semaphores...)
}

func (p *syncPool) track(sub *submission) {
	p.pending = append(p.pending, sub)
}

func (p *syncPool) isSignaled(sub *submission) bool {
	if sub.signaled {
		return true
	}

	res, err := p.driver.GetFenceStatus(sub.fence)
	if err == nil && res == core1_0.VKSuccess {
		sub.signaled = true
	}
	return sub.signaled
}

func (p *syncPool) wait(ctx context.Context, sub *submission) error {
	for !sub.signaled {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := p.driver.WaitForFences(true, FenceTimeout, sub.fence)
		if err != nil {
			return errors.Wrap(err, "wait for fence")
		}
		if res != core1_0.VKTimeout {
			sub.signaled = true
		}
	}
	return nil
}

func (p *syncPool) retire(sub *submission) {
	_, err := p.driver.ResetFences(sub.fence)
	if err != nil {
		// A fence that cannot be reset is not reused
		p.log.WithError(err).Warn("reset fence")
		p.driver.DestroyFence(sub.fence, nil)
	} else {
		p.freeFences = append(p.freeFences, sub.fence)
	}

	p.freeSemaphores = append(p.freeSemaphores, sub.acquired...)
	sub.acquired = nil
	sub.retired = true
}

// collect retires every submission whose fence has signaled. It never blocks.
func (p *syncPool) collect() {
	remaining := p.pending[:0]
	for _, sub := range p.pending {
		if p.isSignaled(sub) {
			p.retire(sub)
			continue
		}
		remaining = append(remaining, sub)
	}
	p.pending = remaining
}

// idle must only be called once the device has gone idle: every pending submission
// has finished and no orphan is still in use
func (p *syncPool) idle() {
	for _, sub := range p.pending {
		sub.signaled = true
		p.retire(sub)
	}
	p.pending = nil

	if len(p.orphans) > 0 {
		p.log.WithField("count", len(p.orphans)).Debug("destroying orphaned semaphores")
	}
	for _, semaphore := range p.orphans {
		p.driver.DestroySemaphore(semaphore, nil)
	}
	p.orphans = nil
}

func (p *syncPool) destroy() {
	p.idle()

	for _, fence := range p.freeFences {
		p.driver.DestroyFence(fence, nil)
	}
	p.freeFences = nil

	for _, semaphore := range p.freeSemaphores {
		p.driver.DestroySemaphore(semaphore, nil)
	}
	p.freeSemaphores = nil
}

// acquireFuture is signaled on the GPU when the presentation engine releases an image.
// The CPU can only observe it through the submission that consumed it.
type acquireFuture struct {
	pool      *syncPool
	semaphore core1_0.Semaphore
	consumer  *submission
}

func (f *acquireFuture) Done() bool {
	return f.consumer != nil && f.pool.isSignaled(f.consumer)
}

func (f *acquireFuture) Wait(ctx context.Context) error {
	if f.consumer == nil {
		return errors.New("acquired image was never submitted")
	}
	return f.pool.wait(ctx, f.consumer)
}

func (f *acquireFuture) CleanupFinished() {
	f.pool.collect()
}

// submitFuture completes when the submission's fence signals. renderFinished, when
// initialized, is signaled by the same submission for presentation to wait on.
type submitFuture struct {
	pool           *syncPool
	submission     *submission
	renderFinished core1_0.Semaphore
}

func (f *submitFuture) Done() bool {
	return f.pool.isSignaled(f.submission)
}

func (f *submitFuture) Wait(ctx context.Context) error {
	return f.pool.wait(ctx, f.submission)
}

func (f *submitFuture) CleanupFinished() {
	f.pool.collect()
}
