package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// Queue errors.
var (
	// ErrDeviceLost is returned once the device or queue has failed. The
	// queue stays failed; every later call returns the same error.
	ErrDeviceLost = errors.New("glimmer: device lost")

	// ErrQueueDestroyed is returned by calls on a destroyed queue.
	ErrQueueDestroyed = errors.New("glimmer: submission queue destroyed")
)

// SubmissionID identifies a submission. IDs start at 1 and increase by one
// per submission; 0 means "never submitted" and is always complete.
type SubmissionID uint64

// Recording is a command encoder together with the cleanup that must wait
// until the GPU has consumed what it recorded.
type Recording struct {
	Encoder hal.CommandEncoder

	buffers  []hal.CommandBuffer
	deferred []func()
}

// Defer schedules fn to run when the recording's submission completes and
// the recording is recycled or the queue is flushed.
func (r *Recording) Defer(fn func()) {
	r.deferred = append(r.deferred, fn)
}

// release resets the encoder and runs deferred cleanup. The GPU must be
// done with every command buffer the encoder produced.
func (r *Recording) release() {
	if len(r.buffers) > 0 {
		r.Encoder.ResetAll(r.buffers)
		clear(r.buffers)
		r.buffers = r.buffers[:0]
	}
	for i, fn := range r.deferred {
		fn()
		r.deferred[i] = nil
	}
	r.deferred = r.deferred[:0]
}

type submission[P any] struct {
	id       SubmissionID
	halIndex uint64
	rec      *Recording
	payload  P
}

// SubmissionQueue submits recordings to a hal.Queue and tracks their
// completion.
//
// Every submission carries a payload of type P that the caller needs back
// once the GPU is done with it, such as the ring allocator marker of the
// frame's uploads. Payloads come back either from Record, when it recycles
// the oldest completed submission, or through the release callback.
type SubmissionQueue[P any] struct {
	device hal.Device
	queue  hal.Queue
	label  string

	nextValue SubmissionID
	lastValue SubmissionID

	inFlight []submission[P]
	free     []*Recording
	release  func(P)

	created   int
	failed    error
	destroyed bool
}

// NewSubmissionQueue creates a queue over a hal device and queue. release
// receives the payload of every submission retired by ReleaseCompleted or
// Flush; it may be nil.
func NewSubmissionQueue[P any](device hal.Device, queue hal.Queue, label string, release func(P)) *SubmissionQueue[P] {
	return &SubmissionQueue[P]{
		device:    device,
		queue:     queue,
		label:     label,
		nextValue: 1,
		release:   release,
	}
}

// Record returns a recording in the encoding state.
//
// If the oldest outstanding submission has completed, its recording is
// recycled and returned together with its payload and true. The caller
// takes ownership of that payload. Otherwise a pooled or newly created
// encoder is used and the boolean is false.
func (q *SubmissionQueue[P]) Record() (*Recording, P, bool, error) {
	var zero P
	if err := q.usable(); err != nil {
		return nil, zero, false, err
	}

	if len(q.inFlight) > 0 && q.IsComplete(q.inFlight[0].id) {
		s := q.inFlight[0]
		q.popFront()
		s.rec.release()
		if err := s.rec.Encoder.BeginEncoding(q.label); err != nil {
			q.free = append(q.free, s.rec)
			return nil, s.payload, true, q.fail(fmt.Errorf("begin encoding: %w", err))
		}
		return s.rec, s.payload, true, nil
	}

	rec, err := q.acquire()
	if err != nil {
		return nil, zero, false, err
	}
	return rec, zero, false, nil
}

func (q *SubmissionQueue[P]) acquire() (*Recording, error) {
	var rec *Recording
	if n := len(q.free); n > 0 {
		rec = q.free[n-1]
		q.free[n-1] = nil
		q.free = q.free[:n-1]
	} else {
		enc, err := q.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: q.label})
		if err != nil {
			return nil, q.fail(fmt.Errorf("create command encoder: %w", err))
		}
		q.created++
		slogger().Debug("gpu: command encoder created", "label", q.label, "total", q.created)
		rec = &Recording{Encoder: enc}
	}
	if err := rec.Encoder.BeginEncoding(q.label); err != nil {
		q.free = append(q.free, rec)
		return nil, q.fail(fmt.Errorf("begin encoding: %w", err))
	}
	return rec, nil
}

// Submit ends encoding and submits the recording with its payload.
//
// On error the queue does not keep the payload and the recording is
// abandoned; the caller disposes of both.
func (q *SubmissionQueue[P]) Submit(rec *Recording, payload P) (SubmissionID, error) {
	if err := q.usable(); err != nil {
		return 0, err
	}
	cb, err := rec.Encoder.EndEncoding()
	if err != nil {
		rec.Encoder.DiscardEncoding()
		return 0, q.fail(fmt.Errorf("end encoding: %w", err))
	}
	rec.buffers = append(rec.buffers, cb)

	idx, err := q.queue.Submit([]hal.CommandBuffer{cb})
	if err != nil {
		return 0, q.fail(fmt.Errorf("submit: %w", err))
	}

	id := q.nextValue
	q.nextValue++
	q.inFlight = append(q.inFlight, submission[P]{
		id:       id,
		halIndex: idx,
		rec:      rec,
		payload:  payload,
	})
	return id, nil
}

// Discard abandons a recording returned by Record without submitting it.
// Deferred cleanup runs immediately.
func (q *SubmissionQueue[P]) Discard(rec *Recording) {
	rec.Encoder.DiscardEncoding()
	rec.release()
	if q.destroyed {
		rec.Encoder.Destroy()
		return
	}
	q.free = append(q.free, rec)
}

// IsComplete reports whether submission id has finished executing. The
// hal queue is only polled when id is newer than the last known completed
// submission.
func (q *SubmissionQueue[P]) IsComplete(id SubmissionID) bool {
	if id <= q.lastValue {
		return true
	}
	return id <= q.PollFence()
}

// PollFence refreshes and returns the newest completed submission.
func (q *SubmissionQueue[P]) PollFence() SubmissionID {
	if len(q.inFlight) == 0 {
		return q.lastValue
	}
	completed := q.queue.PollCompleted()
	for _, s := range q.inFlight {
		if s.halIndex > completed {
			break
		}
		if s.id > q.lastValue {
			q.lastValue = s.id
		}
	}
	return q.lastValue
}

// ReleaseCompleted retires every completed submission in submission
// order, recycling its recording and handing its payload to the release
// callback. It returns the number of submissions retired.
func (q *SubmissionQueue[P]) ReleaseCompleted() int {
	n := 0
	for len(q.inFlight) > 0 && q.IsComplete(q.inFlight[0].id) {
		s := q.inFlight[0]
		q.popFront()
		q.retire(s)
		n++
	}
	return n
}

// Flush blocks until the device is idle and retires every outstanding
// submission.
func (q *SubmissionQueue[P]) Flush() error {
	if q.destroyed {
		return ErrQueueDestroyed
	}
	// Reserve an ID for the wait so that everything submitted so far
	// compares as complete.
	signal := q.nextValue
	q.nextValue++

	if q.failed == nil {
		if err := q.device.WaitIdle(); err != nil {
			return q.fail(fmt.Errorf("wait idle: %w", err))
		}
	}
	q.lastValue = signal
	for len(q.inFlight) > 0 {
		s := q.inFlight[0]
		q.popFront()
		q.retire(s)
	}
	return q.failed
}

// WaitUntil blocks until submission id has completed. hal queues expose no
// per-submission wait, so an incomplete id waits for the device to idle.
func (q *SubmissionQueue[P]) WaitUntil(id SubmissionID) error {
	if q.IsComplete(id) {
		return nil
	}
	if err := q.usable(); err != nil {
		return err
	}
	if err := q.device.WaitIdle(); err != nil {
		return q.fail(fmt.Errorf("wait idle: %w", err))
	}
	if last := q.nextValue - 1; last > q.lastValue {
		q.lastValue = last
	}
	return nil
}

// LastCompleted returns the newest submission known to be complete without
// polling.
func (q *SubmissionQueue[P]) LastCompleted() SubmissionID { return q.lastValue }

// LastSubmitted returns the newest ID handed out.
func (q *SubmissionQueue[P]) LastSubmitted() SubmissionID { return q.nextValue - 1 }

// Outstanding returns the number of submissions not yet retired.
func (q *SubmissionQueue[P]) Outstanding() int { return len(q.inFlight) }

// EncodersCreated returns how many command encoders the queue has created.
func (q *SubmissionQueue[P]) EncodersCreated() int { return q.created }

// Err returns the sticky failure, if any.
func (q *SubmissionQueue[P]) Err() error { return q.failed }

// Destroy flushes the queue and destroys every pooled encoder.
func (q *SubmissionQueue[P]) Destroy() {
	if q.destroyed {
		return
	}
	if err := q.Flush(); err != nil {
		slogger().Warn("gpu: flush on destroy failed", "label", q.label, "err", err)
	}
	for _, rec := range q.free {
		rec.Encoder.Destroy()
	}
	q.free = nil
	// A failed wait leaves submissions in flight; their recordings go too.
	for _, s := range q.inFlight {
		s.rec.release()
		s.rec.Encoder.Destroy()
	}
	q.inFlight = nil
	q.destroyed = true
}

func (q *SubmissionQueue[P]) retire(s submission[P]) {
	s.rec.release()
	q.free = append(q.free, s.rec)
	if q.release != nil {
		q.release(s.payload)
	}
}

func (q *SubmissionQueue[P]) popFront() {
	var zero submission[P]
	q.inFlight[0] = zero
	q.inFlight = q.inFlight[1:]
}

func (q *SubmissionQueue[P]) usable() error {
	if q.destroyed {
		return ErrQueueDestroyed
	}
	return q.failed
}

func (q *SubmissionQueue[P]) fail(err error) error {
	if q.failed == nil {
		q.failed = fmt.Errorf("%w: %w", ErrDeviceLost, err)
		slogger().Warn("gpu: submission queue failed", "label", q.label, "err", err)
	}
	return q.failed
}
