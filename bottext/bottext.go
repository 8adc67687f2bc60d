// Package bottext holds every user-facing reply the bot sends. Defaults are
// compiled in; operators can override any string through a YAML file so the
// wording (or language) can change without a rebuild.
package bottext

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Text is the full set of reply templates. Placeholders use {name} syntax
// and are filled by the helper methods below.
type Text struct {
	Welcome               string `yaml:"message_welcome"`
	PlatformCheck         string `yaml:"message_platform_check"`
	PlatformChoice        string `yaml:"platform_choice"`
	JoinGroup             string `yaml:"join_group"`
	SubscriptionNotActive string `yaml:"subscription_not_active"`
	WelcomeToGroup        string `yaml:"welcome_to_group"`
	AlreadyJoined         string `yaml:"already_joined_group"`
	RemovedFromChat       string `yaml:"removed_from_chat"`
	LinkNotYours          string `yaml:"user_tried_cheating"`
	RequestUnknown        string `yaml:"request_unknown"`
	VerificationFailed    string `yaml:"verification_failed"`
	ReplyReady            string `yaml:"reply_ready"`
	ReplyNotReady         string `yaml:"reply_not_ready"`
	CommandStart          string `yaml:"command_description_start"`
	CommandAddMe          string `yaml:"command_description_add_me"`
	CommandAddMeTwitch    string `yaml:"command_description_add_me_twitch"`
	CommandAddMePatreon   string `yaml:"command_description_add_me_patreon"`
}

// Defaults returns the built-in English templates.
func Defaults() *Text {
	return &Text{
		Welcome:               "Welcome! This bot grants access to the private group to active subscribers. Ready to verify?",
		PlatformCheck:         "Pick the platform where your paid subscription lives and follow the link to prove it.",
		PlatformChoice:        "Verify your {platform} subscription here: {link}",
		JoinGroup:             "You're in! Use this single-use link to join the group: {link}",
		SubscriptionNotActive: "No active paid subscription was found for your account. Subscribe first, then try again.",
		WelcomeToGroup:        "Welcome to the group, {username}!",
		AlreadyJoined:         "You are already a member of the group.",
		RemovedFromChat:       "Your subscription ended, so you have been removed from the group. Re-subscribe any time to come back.",
		LinkNotYours:          "That invite link was not issued to you. Start a verification of your own with /add_me.",
		RequestUnknown:        "I didn't understand that. Here is what I can do:",
		VerificationFailed:    "Verification failed, please try again.",
		ReplyReady:            "I'm ready",
		ReplyNotReady:         "Not yet",
		CommandStart:          "introduction and quick-start buttons",
		CommandAddMe:          "verify a subscription and get an invite link",
		CommandAddMeTwitch:    "verify via Twitch directly",
		CommandAddMePatreon:   "verify via Patreon directly",
	}
}

// Load returns the defaults overlaid with any values set in the YAML file at
// path. An empty path returns plain defaults; a missing file is an error so
// a misconfigured override does not silently vanish.
func Load(path string) (*Text, error) {
	t := Defaults()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bot text file: %w", err)
	}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return nil, fmt.Errorf("parse bot text file %s: %w", path, err)
	}
	return t, nil
}

func fill(tmpl string, pairs ...string) string {
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(tmpl)
}

// FormatPlatformChoice fills the verification-URL message.
func (t *Text) FormatPlatformChoice(platform, link string) string {
	return fill(t.PlatformChoice, "platform", platform, "link", link)
}

// FormatJoinGroup fills the invite-link message.
func (t *Text) FormatJoinGroup(link string) string {
	return fill(t.JoinGroup, "link", link)
}

// FormatWelcomeToGroup fills the group welcome message.
func (t *Text) FormatWelcomeToGroup(username string) string {
	return fill(t.WelcomeToGroup, "username", username)
}

// CommandList renders the fallback help text with the command summary.
func (t *Text) CommandList() string {
	return t.RequestUnknown + "\n\n" +
		"/start - " + t.CommandStart + "\n\n" +
		"/add_me - " + t.CommandAddMe + "\n\n" +
		"/add_me_twitch - " + t.CommandAddMeTwitch + "\n\n" +
		"/add_me_patreon - " + t.CommandAddMePatreon
}
