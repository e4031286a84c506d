package chat

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/ai-collective/backend/internal/model/chat"
)

// RecencyWindow is how many trailing messages bar their authors from the next turn.
const RecencyWindow = 3

// EligibleBots returns the bots that may take the next turn: neither typing nor
// among the authors of the last RecencyWindow messages. Roster order is kept.
func EligibleBots(bots []chat.Bot, messages []chat.Message) []chat.Bot {
	recent := chat.RecentAuthors(messages, RecencyWindow)
	eligible := make([]chat.Bot, 0, len(bots))
	for _, bot := range bots {
		if bot.IsTyping {
			continue
		}
		if _, ok := recent[bot.Name]; ok {
			continue
		}
		eligible = append(eligible, bot)
	}
	return eligible
}

// SubmitUserMessage appends a user message and schedules a bot reply after the
// configured delay. A message sent before the introductions finish is answered
// right after them.
func (s *Service) SubmitUserMessage(text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return chat.Message{}, ErrClosed
	}
	msg := chat.NewMessage(chat.UserName, text)
	s.messages = append(s.messages, msg)
	s.armAutonomousLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	s.recorder.Info("User sent a message", map[string]any{"text": text})
	s.notify()

	go func() {
		defer s.wg.Done()
		if err := s.sleep(s.ctx, s.cfg.ReplyDelay); err != nil {
			return
		}
		s.triggerTurn()
	}()
	return msg, nil
}

type turn struct {
	bot       chat.Bot
	history   []chat.Message
	available []string
	recent    []string
}

// triggerTurn picks one eligible bot and lets it speak. It blocks for the
// duration of the generation call.
func (s *Service) triggerTurn() {
	s.mu.Lock()
	if s.closed || len(s.bots) == 0 {
		s.mu.Unlock()
		return
	}
	if !s.introDone {
		// answered once the introductions finish
		s.pendingReply = true
		s.mu.Unlock()
		s.recorder.Debug("Reply deferred until introductions complete", nil)
		return
	}
	if s.credentials.APIKey() == "" {
		s.mu.Unlock()
		s.recorder.Debug("Turn skipped: no API key configured", nil)
		return
	}

	eligible := EligibleBots(s.bots, s.messages)
	recent := authorNames(chat.Tail(s.messages, RecencyWindow))
	if len(eligible) == 0 {
		// nothing changed, so keep the autonomous clock running
		s.armAutonomousLocked()
		s.mu.Unlock()
		s.recorder.Warn("No bots available to respond.", map[string]any{"recentSpeakers": recent})
		return
	}

	t := turn{
		bot:       eligible[s.rng.IntN(len(eligible))],
		history:   append([]chat.Message(nil), s.messages...),
		available: botNames(eligible),
		recent:    recent,
	}
	s.setTypingLocked(t.bot.Name, true)
	s.armAutonomousLocked()
	s.mu.Unlock()

	s.recorder.Info(fmt.Sprintf("Triggering response for %s", t.bot.Name), map[string]any{
		"availableBots":  t.available,
		"recentSpeakers": t.recent,
	})
	s.notify()

	text := s.responder.Generate(s.ctx, t.bot.Personality, t.history)
	s.appendBotMessage(t.bot.Name, text)
}

func botNames(bots []chat.Bot) []string {
	names := make([]string, len(bots))
	for i, b := range bots {
		names[i] = b.Name
	}
	return names
}

func authorNames(messages []chat.Message) []string {
	names := make([]string, len(messages))
	for i, m := range messages {
		names[i] = m.Author
	}
	return names
}
