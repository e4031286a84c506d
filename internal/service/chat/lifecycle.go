package chat

import (
	"context"
	"fmt"

	"github.com/zhouzirui/ai-collective/backend/internal/model/chat"
)

// IntroductionPrompt is the only history a bot sees when introducing itself.
const IntroductionPrompt = "Please provide a short, in-character introduction."

// Start loads the personalities and, when a credential is present, begins the
// introductions. A load failure is terminal for the session.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseUninitialized {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.phase = PhaseLoadingPersonalities
	hasKey := s.credentials.APIKey() != ""
	if !hasKey {
		s.settingsOpen = true
	}
	s.mu.Unlock()

	s.recorder.Info("App Initialized", map[string]any{"hasApiKey": hasKey})
	s.notify()

	s.recorder.Info("Fetching personalities...", nil)
	bots, err := s.loader.Load(ctx, s.personas)
	if err != nil {
		s.recorder.Error("Error loading bot personalities", map[string]any{"error": err.Error()})
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		s.notify()
		return fmt.Errorf("load personalities: %w", err)
	}

	s.mu.Lock()
	s.bots = bots
	s.phase = PhaseAwaitingCredential
	s.mu.Unlock()
	s.recorder.Info("Personalities loaded successfully", map[string]any{"botCount": len(bots)})

	s.maybeStartIntroductions()
	s.notify()
	return nil
}

// maybeStartIntroductions launches the introduction sequence at most once per session.
func (s *Service) maybeStartIntroductions() {
	s.mu.Lock()
	if s.closed || s.introStarted || s.phase != PhaseAwaitingCredential ||
		len(s.bots) == 0 || s.credentials.APIKey() == "" {
		s.mu.Unlock()
		return
	}
	s.introStarted = true
	s.phase = PhaseRunningIntroductions
	order := append([]chat.Bot(nil), s.bots...)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runIntroductions(order)
}

func (s *Service) runIntroductions(order []chat.Bot) {
	defer s.wg.Done()

	s.recorder.Info("Starting bot introductions...", nil)
	s.notify()

	prompt := []chat.Message{{ID: "intro-prompt", Author: chat.SystemName, Text: IntroductionPrompt}}
	for _, bot := range order {
		s.mu.Lock()
		delay := s.randomDurationLocked(s.cfg.IntroMin, s.cfg.IntroMax)
		s.mu.Unlock()
		if err := s.sleep(s.ctx, delay); err != nil {
			s.recorder.Warn("Bot introductions interrupted", map[string]any{"error": err.Error()})
			return
		}

		s.setTyping(bot.Name, true)
		s.recorder.Debug(fmt.Sprintf("Bot %s is introducing itself.", bot.Name), nil)
		text := s.responder.Generate(s.ctx, bot.Personality, prompt)
		s.appendBotMessage(bot.Name, text)
	}

	s.mu.Lock()
	s.introDone = true
	s.phase = PhaseReady
	s.armAutonomousLocked()
	reply := s.pendingReply && !s.closed
	s.pendingReply = false
	if reply {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	s.recorder.Info("Bot introductions complete.", nil)
	s.notify()

	if reply {
		go func() {
			defer s.wg.Done()
			s.triggerTurn()
		}()
	}
}
