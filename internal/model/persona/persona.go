package persona

// Persona captures the static configuration of one bot in the roster.
type Persona struct {
	Name            string `json:"name" toml:"name"`
	PersonalityFile string `json:"personalityFile" toml:"personality"`
	Avatar          string `json:"avatar" toml:"avatar"`
	AvatarColor     string `json:"avatarColor" toml:"avatar_color"`
	Color           string `json:"color" toml:"color"`
}

// Seed returns the built-in roster shipped with the binary.
func Seed() []Persona {
	personas, err := LoadRoster("")
	if err != nil {
		panic("embedded roster is invalid: " + err.Error())
	}
	return personas
}
