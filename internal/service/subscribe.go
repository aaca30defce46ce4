package service

import (
	"github.com/kursadbilgin/toast-engine/internal/audio"
	"github.com/kursadbilgin/toast-engine/internal/domain"
	"go.uber.org/zap"
)

const cueBufferSize = 16

// Subscribe returns a channel of queue snapshots starting with the current
// one. The channel holds only the latest snapshot: a slow reader skips
// intermediate states rather than blocking the queue. The returned func
// unsubscribes and closes the channel.
func (s *NotificationService) Subscribe() (<-chan []domain.Notification, func()) {
	ch := make(chan []domain.Notification, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	s.nextSub++
	id := s.nextSub
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// SubscribeCues returns a channel of sound cues emitted by the cue device.
// Cues that do not fit the buffer are dropped.
func (s *NotificationService) SubscribeCues() (<-chan audio.Cue, func()) {
	ch := make(chan audio.Cue, cueBufferSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	s.nextSub++
	id := s.nextSub
	s.cueSubs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.cueSubs[id]; ok {
			delete(s.cueSubs, id)
			close(sub)
		}
	}
}

// EmitCue fans a sound cue out to cue subscribers.
func (s *NotificationService) EmitCue(cue audio.Cue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.cueSubs {
		select {
		case ch <- cue:
		default:
			s.metrics.IncSubscriberDrop()
			s.logger.Debug("sound cue dropped for slow subscriber", zap.Uint64("subscriberId", id))
		}
	}
}

// publishLocked replaces any unread snapshot with the current one. Sends
// never block because the service is the only writer.
func (s *NotificationService) publishLocked() {
	s.metrics.SetActive(s.state.Len())
	if len(s.subs) == 0 {
		return
	}

	snapshot := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
			s.metrics.IncSubscriberDrop()
		default:
		}
		ch <- snapshot
	}
}
