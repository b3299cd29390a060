package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWelcome(t *testing.T) {
	s := Defaults()

	free := s.Welcome(WelcomeData{Free: true, Limit: 3})
	assert.Equal(t, "Hello! I'm your specialized AI assistant for Chelsea FC and Frontend Development. You have 3 free messages per day. What would you like to know?", free)

	named := s.Welcome(WelcomeData{Name: "Reece"})
	assert.Contains(t, named, "Welcome, Reece!")
	assert.Contains(t, s.Welcome(WelcomeData{Name: "O'Neil"}), "Welcome, O'Neil!")
	assert.NotContains(t, named, "free messages")
}

func TestBanner(t *testing.T) {
	s := Defaults()

	tests := []struct {
		name string
		data BannerData
		want string
	}{
		{"fresh day", BannerData{Count: 0, Limit: 3}, "3 free messages left · 0/3 messages used today · Reset at midnight"},
		{"singular", BannerData{Count: 2, Limit: 3}, "1 free message left · 2/3 messages used today · Reset at midnight"},
		{"exhausted", BannerData{Count: 3, Limit: 3}, "0 free messages left · 3/3 messages used today · Reset at midnight"},
		{"over the limit clamps", BannerData{Count: 5, Limit: 3}, "0 free messages left · 5/3 messages used today · Reset at midnight"},
		{"premium", BannerData{Count: 9, Limit: 3, Premium: true}, "Premium User"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Banner(tt.data))
		})
	}
}

func TestUpgrade(t *testing.T) {
	assert.Contains(t, Defaults().Upgrade(3), "You've used all 3 free messages for today.")
}

func TestCustomTemplates(t *testing.T) {
	s := Set{BannerTemplate: "{{count}} of {{limit}}"}
	assert.Equal(t, "1 of 3", s.Banner(BannerData{Count: 1, Limit: 3}))

	// empty fields use the defaults
	assert.Contains(t, s.Upgrade(3), "Upgrade to premium")
}

func TestBrokenTemplateFallsBack(t *testing.T) {
	s := Set{UpgradeTemplate: "{{#unclosed}}"}
	assert.Error(t, s.Validate())
	assert.Equal(t, Defaults().Upgrade(3), s.Upgrade(3))

	assert.NoError(t, Defaults().Validate())
}
