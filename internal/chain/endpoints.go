package chain

import (
	"sort"
	"sync"
	"time"
)

const (
	maxConsecutiveErrors = 3
	recoveryInterval     = 30 * time.Second
	latencyAlpha         = 0.3
	unmeasuredLatency    = 100 * time.Millisecond
)

type endpoint struct {
	url       string
	latency   time.Duration
	errs      int
	lastError time.Time
	healthy   bool
	samples   int
}

// endpointSet orders RPC URLs for dialing. Endpoints that keep failing are
// skipped until recoveryInterval has passed.
type endpointSet struct {
	mu        sync.Mutex
	endpoints []*endpoint
	now       func() time.Time
}

func newEndpointSet(urls []string) *endpointSet {
	es := &endpointSet{now: time.Now}
	for _, u := range urls {
		es.endpoints = append(es.endpoints, &endpoint{url: u, latency: unmeasuredLatency, healthy: true})
	}
	return es
}

func (es *endpointSet) success(url string, latency time.Duration) {
	es.mu.Lock()
	defer es.mu.Unlock()

	ep := es.find(url)
	if ep == nil {
		return
	}
	ep.errs = 0
	ep.healthy = true
	if ep.samples == 0 {
		ep.latency = latency
	} else {
		ep.latency = time.Duration(latencyAlpha*float64(latency) + (1-latencyAlpha)*float64(ep.latency))
	}
	ep.samples++
}

func (es *endpointSet) failure(url string) {
	es.mu.Lock()
	defer es.mu.Unlock()

	ep := es.find(url)
	if ep == nil {
		return
	}
	ep.errs++
	ep.lastError = es.now()
	if ep.errs >= maxConsecutiveErrors {
		ep.healthy = false
	}
}

// ordered returns healthy URLs by latency, then endpoints due for a recovery attempt.
func (es *endpointSet) ordered() []string {
	es.mu.Lock()
	defer es.mu.Unlock()

	now := es.now()
	var healthy, recovering []*endpoint
	for _, ep := range es.endpoints {
		switch {
		case ep.healthy:
			healthy = append(healthy, ep)
		case now.Sub(ep.lastError) >= recoveryInterval:
			recovering = append(recovering, ep)
		}
	}
	sort.SliceStable(healthy, func(i, j int) bool { return healthy[i].latency < healthy[j].latency })

	urls := make([]string, 0, len(healthy)+len(recovering))
	for _, ep := range append(healthy, recovering...) {
		urls = append(urls, ep.url)
	}
	return urls
}

func (es *endpointSet) find(url string) *endpoint {
	for _, ep := range es.endpoints {
		if ep.url == url {
			return ep
		}
	}
	return nil
}
