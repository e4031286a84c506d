package chat

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/zhouzirui/ai-collective/backend/internal/config"
	"github.com/zhouzirui/ai-collective/backend/internal/model/chat"
	"github.com/zhouzirui/ai-collective/backend/internal/model/persona"
	"github.com/zhouzirui/ai-collective/backend/internal/service/logs"
	"github.com/zhouzirui/ai-collective/backend/pkg/observer"
)

var (
	ErrEmptyMessage       = errors.New("message text is required")
	ErrCredentialRequired = errors.New("an api key is required")
	ErrAlreadyStarted     = errors.New("chat service already started")
	ErrClosed             = errors.New("chat service closed")
)

// Phase is the session lifecycle state.
type Phase string

const (
	PhaseUninitialized        Phase = "uninitialized"
	PhaseLoadingPersonalities Phase = "loading_personalities"
	PhaseAwaitingCredential   Phase = "awaiting_credential"
	PhaseRunningIntroductions Phase = "running_introductions"
	PhaseReady                Phase = "ready"
)

// Responder produces a bot reply. Failures come back as reply text.
type Responder interface {
	Generate(ctx context.Context, personality string, history []chat.Message) string
}

// PersonalityLoader turns the configured roster into live bots.
type PersonalityLoader interface {
	Load(ctx context.Context, personas []persona.Persona) ([]chat.Bot, error)
}

// Credentials is the API key holder.
type Credentials interface {
	APIKey() string
	Save(ctx context.Context, key string) error
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Random is the source for pacing, coin flips and bot choice.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// Options injects scheduling primitives. Nil fields use real time and math/rand/v2.
type Options struct {
	Sleep     func(ctx context.Context, d time.Duration) error
	AfterFunc func(d time.Duration, f func()) Timer
	Random    Random
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	Phase             Phase          `json:"phase"`
	Messages          []chat.Message `json:"messages"`
	Bots              []chat.Bot     `json:"bots"`
	Paused            bool           `json:"paused"`
	SettingsOpen      bool           `json:"settingsOpen"`
	IntroductionsDone bool           `json:"introductionsDone"`
	HasCredential     bool           `json:"hasCredential"`
	LoadError         string         `json:"loadError,omitempty"`
}

// Service owns the transcript and roster and decides which bot speaks when.
// All mutation happens under mu; generation calls run outside it.
type Service struct {
	personas    []persona.Persona
	loader      PersonalityLoader
	responder   Responder
	credentials Credentials
	recorder    *logs.Recorder
	cfg         config.ChatConfig

	sleep     func(ctx context.Context, d time.Duration) error
	afterFunc func(d time.Duration, f func()) Timer
	rng       Random

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	phase        Phase
	messages     []chat.Message
	bots         []chat.Bot
	paused       bool
	settingsOpen bool
	introStarted bool
	introDone    bool
	pendingReply bool
	loadErr      error
	timer        Timer
	timerGen     uint64
	closed       bool

	notifyMu sync.Mutex
	hub      observer.Hub[Snapshot]
}

// NewService wires the orchestrator. Call Start to load the roster.
func NewService(personas []persona.Persona, loader PersonalityLoader, responder Responder, credentials Credentials, recorder *logs.Recorder, cfg config.ChatConfig, opts Options) *Service {
	if recorder == nil {
		recorder = logs.NewRecorder(0, nil)
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if opts.Random == nil {
		opts.Random = defaultRandom{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		personas:    append([]persona.Persona(nil), personas...),
		loader:      loader,
		responder:   responder,
		credentials: credentials,
		recorder:    recorder,
		cfg:         cfg,
		sleep:       opts.Sleep,
		afterFunc:   opts.AfterFunc,
		rng:         opts.Random,
		ctx:         ctx,
		cancel:      cancel,
		phase:       PhaseUninitialized,
		messages:    make([]chat.Message, 0, 64),
	}
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:             s.phase,
		Messages:          append([]chat.Message(nil), s.messages...),
		Bots:              append([]chat.Bot(nil), s.bots...),
		Paused:            s.paused,
		SettingsOpen:      s.settingsOpen,
		IntroductionsDone: s.introDone,
		HasCredential:     s.credentials.APIKey() != "",
	}
	if s.loadErr != nil {
		snap.LoadError = s.loadErr.Error()
	}
	return snap
}

// Transcript returns a copy of every message so far.
func (s *Service) Transcript() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Message(nil), s.messages...)
}

// Bots returns a copy of the live roster including typing flags.
func (s *Service) Bots() []chat.Bot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.Bot(nil), s.bots...)
}

// Subscribe registers fn for a snapshot after every state change. fn runs on the
// mutating goroutine and must not call back into the service synchronously.
func (s *Service) Subscribe(fn func(Snapshot)) func() {
	return s.hub.Subscribe(fn)
}

// TogglePause flips the autonomous-chat gate and returns the new paused state.
// User-initiated turns are unaffected.
func (s *Service) TogglePause() bool {
	s.mu.Lock()
	s.paused = !s.paused
	paused := s.paused
	s.armAutonomousLocked()
	s.mu.Unlock()

	s.recorder.Info("Toggling autonomous chat", map[string]any{"active": !paused})
	s.notify()
	return paused
}

// SetSettingsOpen records whether the settings dialog is showing. It cannot be
// closed while no credential is configured.
func (s *Service) SetSettingsOpen(open bool) error {
	if !open && s.credentials.APIKey() == "" {
		return ErrCredentialRequired
	}

	s.mu.Lock()
	s.settingsOpen = open
	s.armAutonomousLocked()
	s.mu.Unlock()

	s.notify()
	return nil
}

// SaveCredential stores a new API key, closes the settings dialog and starts the
// introductions if they were waiting on it.
func (s *Service) SaveCredential(ctx context.Context, key string) error {
	if err := s.credentials.Save(ctx, key); err != nil {
		return err
	}
	s.recorder.Info("API Key saved.", nil)

	s.mu.Lock()
	s.settingsOpen = false
	s.armAutonomousLocked()
	s.mu.Unlock()

	s.maybeStartIntroductions()
	s.notify()
	return nil
}

// Close cancels pending timers and in-flight work and waits for it to drain.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// notify publishes a fresh snapshot. notifyMu keeps published snapshots in order.
func (s *Service) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.hub.Publish(s.Snapshot())
}

func (s *Service) setTyping(name string, typing bool) {
	s.mu.Lock()
	s.setTypingLocked(name, typing)
	s.armAutonomousLocked()
	s.mu.Unlock()
	s.notify()
}

func (s *Service) setTypingLocked(name string, typing bool) {
	for i := range s.bots {
		if s.bots[i].Name == name {
			s.bots[i].IsTyping = typing
			return
		}
	}
}

// appendBotMessage lands a finished turn: the message is appended and the bot
// stops typing in the same critical section.
func (s *Service) appendBotMessage(name, text string) {
	s.mu.Lock()
	s.setTypingLocked(name, false)
	if !s.closed {
		s.messages = append(s.messages, chat.NewMessage(name, text))
	}
	s.armAutonomousLocked()
	s.mu.Unlock()
	s.notify()
}

func (s *Service) randomDurationLocked(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Float64()*float64(max-min))
}

type defaultRandom struct{}

func (defaultRandom) Float64() float64 { return rand.Float64() }
func (defaultRandom) IntN(n int) int   { return rand.IntN(n) }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
