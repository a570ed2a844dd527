package myzmanim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
	"golang.org/x/sync/errgroup"

	"shulscreen/internal/metrics"
	"shulscreen/internal/model"
	"shulscreen/internal/week"
)

type dayKey struct {
	location string
	date     week.Date
}

func newDayCache(ttl time.Duration) *otter.Cache[dayKey, model.Day] {
	return otter.Must(&otter.Options[dayKey, model.Day]{
		MaximumSize:      1_000,
		ExpiryCalculator: otter.ExpiryWriting[dayKey, model.Day](ttl),
	})
}

// dayResponse is the part of a getDay answer the board uses.
type dayResponse struct {
	Time struct {
		DateCivilLong   string `json:"DateCivilLong"`
		DateFullShort   string `json:"DateFullShort"`
		DateJewishLong  string `json:"DateJewishLong"`
		DateJewishShort string `json:"DateJewishShort"`
	} `json:"Time"`
	// Zman mixes timestamps with flags and numbers; only strings are kept.
	Zman map[string]any `json:"Zman"`
}

func (r dayResponse) toDay(d week.Date) model.Day {
	day := model.Day{
		Date: d.String(),
		Zman: make(map[string]string, len(r.Zman)),
		Civil: model.DateStrings{
			CivilLong:   r.Time.DateCivilLong,
			FullShort:   r.Time.DateFullShort,
			JewishLong:  r.Time.DateJewishLong,
			JewishShort: r.Time.DateJewishShort,
		},
	}
	for field, v := range r.Zman {
		if s, ok := v.(string); ok && s != "" {
			day.Zman[field] = s
		}
	}
	return day
}

// Day returns the getDay payload for one date, from memory when possible.
// A (location, date) pair always yields the same values, so a cached day is
// never stale within its TTL.
func (c *Client) Day(ctx context.Context, locationID string, d week.Date) (model.Day, error) {
	key := dayKey{location: locationID, date: d}
	if c.days != nil {
		day, ok := c.days.GetIfPresent(key)
		c.metrics.CacheLookup(metrics.TierDay, ok)
		if ok {
			return day, nil
		}
	}

	form := c.auth()
	form.Set("Language", c.language)
	form.Set("LocationID", locationID)
	form.Set("InputDate", d.String())

	var resp dayResponse
	if err := c.post(ctx, methodGetDay, form, &resp); err != nil {
		return model.Day{}, err
	}
	day := resp.toDay(d)

	if c.days != nil {
		c.days.Set(key, day)
	}
	return day, nil
}

// Days resolves the location once, then fetches every date concurrently.
// Any failure fails the whole call; no partial result is returned.
func (c *Client) Days(ctx context.Context, dates []week.Date) (map[week.Date]model.Day, error) {
	loc, err := c.LocationID(ctx, c.postal)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	var mu sync.Mutex
	out := make(map[week.Date]model.Day, len(dates))
	for _, d := range dates {
		g.Go(func() error {
			day, err := c.Day(gctx, loc, d)
			if err != nil {
				return fmt.Errorf("getDay %s: %w", d, err)
			}
			mu.Lock()
			out[d] = day
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
