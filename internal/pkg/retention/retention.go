package retention

import (
	"errors"
	"time"
)

// Tier names a retention policy for archived sessions.
type Tier string

const (
	TierStandard  Tier = "standard"
	TierPermanent Tier = "permanent"
)

var ErrUnknownTier = errors.New("retention: unknown tier")

// Policy maps tiers to retention day counts. It is pure configuration, no
// side effects, no clock of its own.
type Policy struct {
	StandardDays  int
	PermanentDays int
}

// DefaultPolicy mirrors the shipped defaults: one year for standard, seven
// for permanent.
func DefaultPolicy() Policy {
	return Policy{StandardDays: 365, PermanentDays: 2555}
}

func (p Policy) Days(tier Tier) (int, error) {
	switch tier {
	case TierStandard:
		return p.StandardDays, nil
	case TierPermanent:
		return p.PermanentDays, nil
	default:
		return 0, ErrUnknownTier
	}
}

// Expiry computes when an archive created at createdAt leaves retention.
// expires_at is always created_at + tier days; tier changes recompute from
// the same created_at.
func (p Policy) Expiry(tier Tier, createdAt time.Time) (time.Time, error) {
	days, err := p.Days(tier)
	if err != nil {
		return time.Time{}, err
	}
	return createdAt.AddDate(0, 0, days), nil
}

// Valid reports whether tier is a known tier name.
func Valid(tier Tier) bool {
	return tier == TierStandard || tier == TierPermanent
}
