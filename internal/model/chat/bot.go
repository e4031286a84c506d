package chat

// Bot is a live persona in the session roster.
type Bot struct {
	Name        string `json:"name"`
	Personality string `json:"-"`
	Avatar      string `json:"avatar"`
	AvatarColor string `json:"avatarColor"`
	Color       string `json:"color"`
	IsTyping    bool   `json:"isTyping"`
}

// AnyTyping reports whether any bot has a generation in flight.
func AnyTyping(bots []Bot) bool {
	for _, bot := range bots {
		if bot.IsTyping {
			return true
		}
	}
	return false
}
