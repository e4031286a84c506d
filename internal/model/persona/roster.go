package persona

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed roster.toml personalities/*.txt
var embedded embed.FS

// reservedNames cannot be used by bots; they label user and system turns.
var reservedNames = map[string]struct{}{
	"You":    {},
	"System": {},
}

var (
	ErrEmptyRoster   = errors.New("roster has no bots")
	ErrDuplicateName = errors.New("duplicate bot name")
)

type rosterFile struct {
	Bots []Persona `toml:"bots"`
}

// Personalities exposes the embedded personality texts, rooted so that roster paths
// such as "personalities/vael.txt" resolve directly.
func Personalities() fs.FS {
	return embedded
}

// LoadRoster parses a TOML roster. An empty path selects the embedded default.
func LoadRoster(path string) ([]Persona, error) {
	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(path) == "" {
		data, err = embedded.ReadFile("roster.toml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	var file rosterFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}

	if err := validate(file.Bots); err != nil {
		return nil, err
	}
	return file.Bots, nil
}

// validate trims names and paths in place and checks them.
func validate(personas []Persona) error {
	if len(personas) == 0 {
		return ErrEmptyRoster
	}

	seen := make(map[string]struct{}, len(personas))
	for i := range personas {
		p := &personas[i]
		p.Name = strings.TrimSpace(p.Name)
		p.PersonalityFile = strings.TrimSpace(p.PersonalityFile)
		name := p.Name
		if name == "" {
			return fmt.Errorf("bot #%d: name is required", i+1)
		}
		if p.PersonalityFile == "" {
			return fmt.Errorf("bot %q: personality path is required", name)
		}
		if _, ok := reservedNames[name]; ok {
			return fmt.Errorf("bot %q: name is reserved", name)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}
