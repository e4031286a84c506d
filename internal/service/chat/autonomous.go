package chat

import "github.com/zhouzirui/ai-collective/backend/internal/model/chat"

func (s *Service) autonomousReadyLocked() bool {
	return !s.closed && !s.paused && !s.settingsOpen && s.introDone && !chat.AnyTyping(s.bots)
}

// armAutonomousLocked cancels any pending autonomous timer and, if the session
// is idle and unpaused, schedules a new one. Every call bumps timerGen so that a
// callback already in flight for an older timer becomes a no-op.
func (s *Service) armAutonomousLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
	if !s.autonomousReadyLocked() {
		return
	}

	gen := s.timerGen
	delay := s.randomDurationLocked(s.cfg.AutonomousMin, s.cfg.AutonomousMax)
	s.timer = s.afterFunc(delay, func() { s.onAutonomousTimer(gen) })
}

// onAutonomousTimer handles an expiry. An expiry that does not start a turn
// (user spoke last, coin flip missed) schedules the next one instead of leaving
// the conversation idle until some other state change; the same holds for a
// turn that finds no eligible bot.
func (s *Service) onAutonomousTimer(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || !s.autonomousReadyLocked() {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	n := len(s.messages)
	if n == 0 || s.messages[n-1].Author == chat.UserName {
		s.armAutonomousLocked()
		s.mu.Unlock()
		return
	}
	if s.rng.Float64() >= s.cfg.AutonomousChance {
		s.armAutonomousLocked()
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.recorder.Debug("Triggering autonomous bot chat.", nil)
	s.triggerTurn()
}
