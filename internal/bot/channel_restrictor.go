package bot

import (
	"log/slog"
	"strings"
)

// ChannelRestrictor limits which channels the bot reacts in
type ChannelRestrictor struct {
	restrictions ChannelRestrictions
	allowed      map[string]bool
	logger       *slog.Logger
}

// ChannelRestrictions represents the channel restriction configuration
type ChannelRestrictions struct {
	AllowedChannelIDs []string
	RestrictDMs       bool
}

// Enabled reports whether any restriction applies
func (r ChannelRestrictions) Enabled() bool {
	return len(r.AllowedChannelIDs) > 0 || r.RestrictDMs
}

// NewChannelRestrictor creates a new channel restrictor
func NewChannelRestrictor(restrictions ChannelRestrictions, logger *slog.Logger) *ChannelRestrictor {
	allowed := make(map[string]bool, len(restrictions.AllowedChannelIDs))
	for _, id := range restrictions.AllowedChannelIDs {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = true
		}
	}
	return &ChannelRestrictor{
		restrictions: restrictions,
		allowed:      allowed,
		logger:       logger,
	}
}

// IsChannelAllowed checks if a channel is allowed for bot operations
func (cr *ChannelRestrictor) IsChannelAllowed(channelID string) bool {
	if cr == nil {
		return true
	}

	// Direct message channel ids start with "D"
	if strings.HasPrefix(channelID, "D") {
		return !cr.restrictions.RestrictDMs
	}

	// If no allowed channels configured, allow all (empty list means no restrictions)
	if len(cr.allowed) == 0 {
		return true
	}

	if cr.allowed[channelID] {
		return true
	}

	cr.logger.Debug("Channel not in allowed list",
		"channel_id", channelID,
		"allowed_channels", len(cr.allowed))
	return false
}

// Describe summarizes the restrictions for startup logs
func (cr *ChannelRestrictor) Describe() string {
	if !cr.restrictions.Enabled() {
		return "all channels"
	}

	var parts []string
	if len(cr.allowed) > 0 {
		parts = append(parts, strings.Join(cr.restrictions.AllowedChannelIDs, ","))
	} else {
		parts = append(parts, "all channels")
	}
	if cr.restrictions.RestrictDMs {
		parts = append(parts, "no direct messages")
	}
	return strings.Join(parts, "; ")
}
