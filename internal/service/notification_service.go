package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/toast-engine/internal/audio"
	"github.com/kursadbilgin/toast-engine/internal/countdown"
	"github.com/kursadbilgin/toast-engine/internal/domain"
	"github.com/kursadbilgin/toast-engine/internal/observability"
	"github.com/kursadbilgin/toast-engine/internal/queue"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("notification service is closed")

// ShowOptions describes a notification to show. Nil and zero fields take
// their defaults.
type ShowOptions struct {
	Type      domain.Type
	Message   string
	Duration  *time.Duration
	AutoClose *bool
	Theme     domain.Theme
	Position  domain.Position
	Actions   []domain.Action
	PlaySound *bool
}

// Options configures a NotificationService.
type Options struct {
	MaxNotifications int
	PlaySoundDefault bool
	DefaultDuration  time.Duration
	Clock            countdown.Clock
	NewID            func() string
}

// SoundFactory builds the audio manager for a sound configuration. emit
// delivers sound cues to the service's cue subscribers.
type SoundFactory func(cfg audio.Config, emit func(audio.Cue)) *audio.Manager

// NotificationService owns the notification queue. It is the only component
// that mutates queue state; every transition runs under one lock.
type NotificationService struct {
	logger   *zap.Logger
	metrics  *observability.Metrics
	clock    countdown.Clock
	newID    func() string
	newSound SoundFactory

	max             int
	playSound       bool
	defaultDuration time.Duration

	mu      sync.Mutex
	state   queue.State
	timers  map[string]*countdown.Countdown
	closed  bool
	subs    map[uint64]chan []domain.Notification
	cueSubs map[uint64]chan audio.Cue
	nextSub uint64

	soundCfg *audio.Config
	sound    *audio.Manager
}

func NewNotificationService(opts Options, newSound SoundFactory, logger *zap.Logger) (*NotificationService, error) {
	if opts.MaxNotifications < 0 {
		return nil, fmt.Errorf("%w: max notifications must not be negative", domain.ErrValidation)
	}
	if opts.MaxNotifications == 0 {
		opts.MaxNotifications = queue.DefaultMaxNotifications
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = domain.DefaultDuration
	}
	if opts.Clock == nil {
		opts.Clock = countdown.SystemClock{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &NotificationService{
		logger:          logger,
		clock:           opts.Clock,
		newID:           opts.NewID,
		max:             opts.MaxNotifications,
		playSound:       opts.PlaySoundDefault,
		defaultDuration: opts.DefaultDuration,
		timers:          make(map[string]*countdown.Countdown),
		subs:            make(map[uint64]chan []domain.Notification),
		cueSubs:         make(map[uint64]chan audio.Cue),
	}
	if newSound == nil {
		newSound = s.defaultSoundFactory
	}
	s.newSound = newSound

	return s, nil
}

func (s *NotificationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = metrics
	if metrics != nil {
		s.sound.SetRecorder(metrics)
	}
	metrics.SetActive(s.state.Len())
}

// Show adds a notification and returns its id. A duplicate of a held
// notification returns the id of the record it was collapsed into.
func (s *NotificationService) Show(opts ShowOptions) (string, error) {
	n := s.buildNotification(opts)
	if err := n.Validate(); err != nil {
		return "", err
	}

	play := s.playSound
	if opts.PlaySound != nil {
		play = *opts.PlaySound
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}

	n.ID = s.newID()
	n.CreatedAt = s.clock.Now()

	next, result := queue.Reduce(s.state, queue.Add{Notification: n}, s.max)
	s.state = next

	id := n.ID
	switch {
	case result.Deduped != "":
		id = result.Deduped
		s.restartTimerLocked(id)
		s.metrics.IncDeduped(n.Type.String())
		s.logger.Debug("notification deduplicated",
			zap.String("notificationId", id),
			zap.String("type", n.Type.String()),
		)
	case result.Added:
		if evicted := result.Evicted; evicted != nil {
			s.stopTimerLocked(evicted.ID)
			s.metrics.IncEvicted(evicted.Position.String())
			s.metrics.AddDismissed(domain.DismissEvicted.String(), 1)
			s.logger.Debug("notification evicted",
				zap.String("notificationId", evicted.ID),
				zap.String("position", evicted.Position.String()),
			)
		}
		s.startTimerLocked(n)
		s.metrics.IncShown(n.Type.String())
		s.logger.Debug("notification shown",
			zap.String("notificationId", id),
			zap.String("type", n.Type.String()),
			zap.String("position", n.Position.String()),
		)
	}
	s.publishLocked()
	sound := s.sound
	s.mu.Unlock()

	if play {
		sound.Play(n.Type)
	}
	return id, nil
}

// Remove dismisses the notification. Unknown ids are ignored.
func (s *NotificationService) Remove(id string) {
	s.removeWithReason(strings.TrimSpace(id), domain.DismissManual, nil)
}

// ClearAll dismisses every notification and cancels their countdowns.
func (s *NotificationService) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, result := queue.Reduce(s.state, queue.ClearAll{}, s.max)
	s.state = next
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	if len(result.Removed) == 0 {
		return
	}

	s.metrics.AddDismissed(domain.DismissCleared.String(), len(result.Removed))
	s.logger.Debug("notifications cleared", zap.Int("count", len(result.Removed)))
	s.publishLocked()
}

// Pause freezes the notification's countdown, e.g. while it is hovered.
func (s *NotificationService) Pause(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Find(id); !ok {
		return fmt.Errorf("%w: notification %q", domain.ErrNotFound, id)
	}
	if timer, ok := s.timers[id]; ok {
		timer.Pause()
	}
	return nil
}

// Resume continues a paused countdown with the time it had left.
func (s *NotificationService) Resume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Find(id); !ok {
		return fmt.Errorf("%w: notification %q", domain.ErrNotFound, id)
	}
	if timer, ok := s.timers[id]; ok {
		timer.Resume(timer.Remaining())
	}
	return nil
}

// PauseAll freezes every countdown, e.g. while the window is blurred.
func (s *NotificationService) PauseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, timer := range s.timers {
		timer.Pause()
	}
}

func (s *NotificationService) ResumeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, timer := range s.timers {
		timer.Resume(timer.Remaining())
	}
}

// Remaining reports the countdown time left for id. ok is false when the
// notification is unknown or does not auto-dismiss.
func (s *NotificationService) Remaining(id string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[id]
	if !ok {
		return 0, false
	}
	return timer.Remaining(), true
}

// TriggerAction runs the action at index and dismisses the notification when
// the action closes on click.
func (s *NotificationService) TriggerAction(id string, index int) error {
	s.mu.Lock()
	n, ok := s.state.Find(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: notification %q", domain.ErrNotFound, id)
	}
	if index < 0 || index >= len(n.Actions) {
		s.mu.Unlock()
		return fmt.Errorf("%w: action index %d out of range", domain.ErrValidation, index)
	}
	action := n.Actions[index]
	if action.Disabled {
		s.mu.Unlock()
		return fmt.Errorf("%w: action %q is disabled", domain.ErrValidation, action.Label)
	}
	s.mu.Unlock()

	if action.OnClick != nil {
		action.OnClick()
	}
	if action.CloseOnClick {
		s.removeWithReason(id, domain.DismissAction, nil)
	}
	return nil
}

// Snapshot returns a copy of the held notifications, oldest first.
func (s *NotificationService) Snapshot() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *NotificationService) Get(id string) (domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.state.Find(strings.TrimSpace(id))
	if !ok {
		return domain.Notification{}, fmt.Errorf("%w: notification %q", domain.ErrNotFound, id)
	}
	n.Actions = append([]domain.Action(nil), n.Actions...)
	return n, nil
}

// Ready reports ErrClosed once the service has been closed.
func (s *NotificationService) Ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Grouped returns the held notifications bucketed by screen position.
func (s *NotificationService) Grouped() []queue.PositionGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queue.GroupByPosition(queue.State{Notifications: s.snapshotLocked()})
}

// Close stops every countdown, releases audio and closes subscriptions.
func (s *NotificationService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	for id, ch := range s.cueSubs {
		close(ch)
		delete(s.cueSubs, id)
	}
	sound := s.sound
	s.sound = nil
	s.soundCfg = nil
	s.mu.Unlock()

	sound.Cleanup()
}

func (s *NotificationService) buildNotification(opts ShowOptions) domain.Notification {
	n := domain.Notification{
		Type:      opts.Type,
		Message:   strings.TrimSpace(opts.Message),
		Duration:  s.defaultDuration,
		AutoClose: true,
		Theme:     opts.Theme,
		Position:  opts.Position,
	}
	if n.Type == "" {
		n.Type = domain.DefaultType
	}
	if n.Theme == "" {
		n.Theme = domain.DefaultTheme
	}
	if n.Position == "" {
		n.Position = domain.DefaultPosition
	}
	if opts.Duration != nil {
		n.Duration = *opts.Duration
	}
	if opts.AutoClose != nil {
		n.AutoClose = *opts.AutoClose
	}
	if len(opts.Actions) > 0 {
		n.Actions = make([]domain.Action, len(opts.Actions))
		copy(n.Actions, opts.Actions)
		for i := range n.Actions {
			if n.Actions[i].Variant == "" {
				n.Actions[i].Variant = domain.DefaultActionVariant
			}
		}
	}
	return n
}

func (s *NotificationService) removeWithReason(id string, reason domain.DismissReason, from *countdown.Countdown) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A countdown that fired after being replaced must not remove anything.
	if from != nil && s.timers[id] != from {
		return
	}

	next, result := queue.Reduce(s.state, queue.Remove{ID: id}, s.max)
	s.state = next
	s.stopTimerLocked(id)
	if len(result.Removed) == 0 {
		return
	}

	s.metrics.AddDismissed(reason.String(), 1)
	s.logger.Debug("notification dismissed",
		zap.String("notificationId", id),
		zap.String("reason", reason.String()),
	)
	s.publishLocked()
}

func (s *NotificationService) startTimerLocked(n domain.Notification) {
	if !n.Countdown() {
		return
	}

	var timer *countdown.Countdown
	timer = countdown.New(s.clock, func() {
		s.removeWithReason(n.ID, domain.DismissExpired, timer)
	})
	s.timers[n.ID] = timer
	timer.Start(n.Duration)
}

// restartTimerLocked gives a refreshed duplicate its full lifetime again.
// A paused countdown stays paused.
func (s *NotificationService) restartTimerLocked(id string) {
	timer, ok := s.timers[id]
	if !ok {
		return
	}
	n, ok := s.state.Find(id)
	if !ok {
		return
	}

	// A fresh countdown makes an expiry already in flight for the old one stale.
	paused := timer.Paused()
	s.stopTimerLocked(id)
	s.startTimerLocked(n)
	if next, ok := s.timers[id]; ok && paused {
		next.Pause()
	}
}

func (s *NotificationService) stopTimerLocked(id string) {
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

func (s *NotificationService) snapshotLocked() []domain.Notification {
	out := make([]domain.Notification, len(s.state.Notifications))
	copy(out, s.state.Notifications)
	for i := range out {
		if len(out[i].Actions) > 0 {
			out[i].Actions = append([]domain.Action(nil), out[i].Actions...)
		}
	}
	return out
}
