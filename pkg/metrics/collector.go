package metrics

import (
	"time"

	"github.com/systerel/s2opc-go/pkg/channel"
	"github.com/systerel/s2opc-go/pkg/pki"
	"github.com/systerel/s2opc-go/pkg/reqhandle"
	"github.com/systerel/s2opc-go/pkg/session"
)

// Collector periodically samples the dispatcher's collaborators
// (session registry, channel registry, request handle table, PKI
// provider) into the gauges of this package.
type Collector struct {
	sessions *session.Registry
	channels *channel.Registry
	requests *reqhandle.Table
	pkiProv  *pki.Provider
	stopCh   chan struct{}
}

// NewCollector builds a collector over the given dispatcher
// collaborators. pkiProv may be nil if no PKI provider is in use.
func NewCollector(sessions *session.Registry, channels *channel.Registry, requests *reqhandle.Table, pkiProv *pki.Provider) *Collector {
	return &Collector{
		sessions: sessions,
		channels: channels,
		requests: requests,
		pkiProv:  pkiProv,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic collection on a 15 second tick.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectSessionMetrics()
	c.collectChannelMetrics()
	c.collectRequestHandleMetrics()
	c.collectPKIMetrics()
}

func (c *Collector) collectSessionMetrics() {
	if c.sessions == nil {
		return
	}
	for state, count := range c.sessions.StateCounts() {
		SessionsTotal.WithLabelValues(state.String()).Set(float64(count))
	}
}

func (c *Collector) collectChannelMetrics() {
	if c.channels == nil {
		return
	}
	for role, count := range c.channels.RoleCounts() {
		ChannelsTotal.WithLabelValues(role).Set(float64(count))
	}
}

func (c *Collector) collectRequestHandleMetrics() {
	if c.requests == nil {
		return
	}
	RequestHandlesOutstanding.Set(float64(c.requests.Len()))
}

func (c *Collector) collectPKIMetrics() {
	if c.pkiProv == nil {
		return
	}
	RejectedCertsTotal.Set(float64(len(c.pkiProv.Rejected())))
}
