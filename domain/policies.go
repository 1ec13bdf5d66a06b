package domain

import (
	"strings"

	"github.com/google/uuid"
	"time"
)

// InstancePolicy is the per-host moderation record. Domain may carry a single
// leading wildcard segment ("*.example.com") covering strict subdomains only.
type InstancePolicy struct {
	Id                       uuid.UUID
	Domain                   string
	Blocked                  bool
	MediaRemoval             bool
	MediaNsfw                bool
	FederatedTimelineRemoval bool
	FollowersOnly            bool
	ReportRemoval            bool
	RejectDeletes            bool
	AvatarRemoval            bool
	BannerRemoval            bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// FlagSummary returns the enabled flags as a short comma-separated list,
// "none" when the record carries no flags.
func (p *InstancePolicy) FlagSummary() string {
	var flags []string

	if p.Blocked {
		flags = append(flags, "blocked")
	}
	if p.MediaRemoval {
		flags = append(flags, "media")
	}
	if p.MediaNsfw {
		flags = append(flags, "nsfw")
	}
	if p.FederatedTimelineRemoval {
		flags = append(flags, "delist")
	}
	if p.FollowersOnly {
		flags = append(flags, "followers-only")
	}
	if p.ReportRemoval {
		flags = append(flags, "no-reports")
	}
	if p.RejectDeletes {
		flags = append(flags, "no-deletes")
	}
	if p.AvatarRemoval {
		flags = append(flags, "no-avatar")
	}
	if p.BannerRemoval {
		flags = append(flags, "no-banner")
	}

	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ", ")
}

// IsWildcard reports whether the record's domain is a wildcard pattern.
func (p *InstancePolicy) IsWildcard() bool {
	return strings.HasPrefix(p.Domain, "*.")
}
