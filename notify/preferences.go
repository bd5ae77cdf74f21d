package notify

import (
	"context"
	"slices"
	"sync"
)

type (
	Preference struct {
		// Classes the user opted out of
		Disabled []Class `yaml:"disabled"`
		// Channels the user accepts. Empty accepts every channel
		Channels []Channel `yaml:"channels"`
	}
	Preferences interface {
		Allows(ctx context.Context, userId string, class Class, channel Channel) (allowed bool, err error)
	}
)

// StaticPreferences keeps preferences in memory. Unknown users accept everything
type StaticPreferences struct {
	mu    sync.RWMutex
	users map[string]Preference
}

var _ Preferences = (*StaticPreferences)(nil)

func NewStaticPreferences(users map[string]Preference) (p *StaticPreferences) {
	p = &StaticPreferences{users: make(map[string]Preference, len(users))}
	for userId, preference := range users {
		p.users[userId] = preference
	}
	return p
}

func (p *StaticPreferences) Set(userId string, preference Preference) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[userId] = preference
}

func (p *StaticPreferences) Allows(ctx context.Context, userId string, class Class, channel Channel) (allowed bool, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	preference, found := p.users[userId]
	if userId == "" || !found {
		return true, nil
	}
	if slices.Contains(preference.Disabled, class) {
		return false, nil
	}
	return len(preference.Channels) == 0 || slices.Contains(preference.Channels, channel), nil
}
