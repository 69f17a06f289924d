// Package stats answers "how many subscribers does this channel have" from
// the live Telegram count when possible and the stored value otherwise.
package stats

import (
	"context"
	"errors"
	"fmt"

	"tgfeed/internal/database/models"
)

// ErrNoStats is returned when no strategy produced a count.
var ErrNoStats = errors.New("no subscriber count available")

// FetchFunc produces a subscriber count for channel.
type FetchFunc func(ctx context.Context, channel string) (models.ChannelStats, error)

// Strategy is one named way of obtaining a count.
type Strategy struct {
	Name  models.StatsSource
	Fetch FetchFunc
}

// FirstSuccess tries strategies in order and returns the first count
// together with the name of the strategy that produced it.
func FirstSuccess(ctx context.Context, channel string, strategies ...Strategy) (models.ChannelStats, models.StatsSource, error) {
	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return models.ChannelStats{}, "", err
		}
		st, err := s.Fetch(ctx, channel)
		if err == nil {
			return st, s.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return models.ChannelStats{}, "", fmt.Errorf("%w: %w", ErrNoStats, errors.Join(errs...))
}
