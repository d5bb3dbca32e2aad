package platform

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/locator/internal/location"
	"github.com/relabs-tech/locator/internal/store"
)

// errNotAuthorized is the synchronous refusal of a live request made
// without a granted permission.
var errNotAuthorized = errors.New("location authorization not granted")

// feedSet is the provider table shared by Device and Sim.
type feedSet map[location.Provider]*Feed

// newFeedSet creates the GPS, network and passive feeds on st. The passive
// feed receives every fix of the other two.
func newFeedSet(st store.Store, enabled func(location.Provider) bool) feedSet {
	fs := make(feedSet, len(location.PriorityOrder))
	for _, p := range location.PriorityOrder {
		fs[p] = NewFeed(p, st, enabled(p))
	}
	fs[location.ProviderGPS].ForwardTo(fs[location.ProviderPassive])
	fs[location.ProviderNetwork].ForwardTo(fs[location.ProviderPassive])
	return fs
}

func (fs feedSet) available() []location.Provider {
	var out []location.Provider
	for _, p := range location.PriorityOrder {
		if f, ok := fs[p]; ok && f.Enabled() {
			out = append(out, p)
		}
	}
	return out
}

func (fs feedSet) feed(p location.Provider) (*Feed, error) {
	f, ok := fs[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, location.ErrProviderUnavailable)
	}
	return f, nil
}

func (fs feedSet) lastKnown(p location.Provider) (*location.Fix, error) {
	f, err := fs.feed(p)
	if err != nil {
		return nil, err
	}
	return f.LastKnown()
}

func (fs feedSet) subscribe(p location.Provider, status location.PermissionStatus) (location.Subscription, error) {
	if !status.Granted() {
		return nil, fmt.Errorf("subscribe %s: %w (%s)", p, errNotAuthorized, status)
	}
	f, err := fs.feed(p)
	if err != nil {
		return nil, err
	}
	return f.Subscribe()
}

func (fs feedSet) listeners() int {
	n := 0
	for _, f := range fs {
		n += f.Listeners()
	}
	return n
}
