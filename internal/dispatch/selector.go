package dispatch

import (
	"sort"
	"time"

	"github.com/Rakib-codee/harmonycare-backend/internal/geo"
	"github.com/Rakib-codee/harmonycare-backend/internal/model"
)

// Defaults used when a Selector field is left zero.
const (
	DefaultFreshness     = 10 * time.Minute
	DefaultMaxRecipients = 10
)

// Candidate is a volunteer chosen for a notification.
type Candidate struct {
	UserID    int64
	PushToken string
	// DistanceKm is nil when the volunteer has no known location.
	DistanceKm *float64
}

// Selector ranks a snapshot of volunteer devices for an emergency location.
type Selector struct {
	Freshness     time.Duration
	MaxRecipients int
}

// NewSelector returns a Selector with the given limits, falling back to the defaults for zero values.
func NewSelector(freshness time.Duration, maxRecipients int) Selector {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	if maxRecipients <= 0 {
		maxRecipients = DefaultMaxRecipients
	}
	return Selector{Freshness: freshness, MaxRecipients: maxRecipients}
}

// Select drops volunteers without a push token or with a heartbeat older than the
// freshness window, orders the rest by ascending distance from origin and returns at
// most MaxRecipients of them. Volunteers without a location come after all located
// ones. Ties keep snapshot order.
func (s Selector) Select(origin geo.Point, snapshot []model.Device, now time.Time) []Candidate {
	sel := NewSelector(s.Freshness, s.MaxRecipients)
	staleBefore := now.Add(-sel.Freshness)

	candidates := make([]Candidate, 0, len(snapshot))
	for _, d := range snapshot {
		if d.PushToken == "" || d.LastSeenAt.Before(staleBefore) {
			continue
		}
		c := Candidate{UserID: d.UserID, PushToken: d.PushToken}
		if d.HasLocation() {
			p := geo.Point{Lat: *d.Latitude, Lon: *d.Longitude}
			if p.Valid() {
				km := geo.DistanceKm(origin, p)
				c.DistanceKm = &km
			}
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].DistanceKm, candidates[j].DistanceKm
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})

	if len(candidates) > sel.MaxRecipients {
		candidates = candidates[:sel.MaxRecipients]
	}
	return candidates
}

// Tokens returns the push tokens of cs in order.
func Tokens(cs []Candidate) []string {
	tokens := make([]string, len(cs))
	for i, c := range cs {
		tokens[i] = c.PushToken
	}
	return tokens
}

// UserIDs returns the volunteer ids of cs in order.
func UserIDs(cs []Candidate) []int64 {
	ids := make([]int64, len(cs))
	for i, c := range cs {
		ids[i] = c.UserID
	}
	return ids
}
