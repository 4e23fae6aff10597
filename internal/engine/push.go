package engine

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher delivers metrics after each batch.
type Pusher interface {
	Push() error
}

// NewPushgatewayPusher returns a pusher that sends the default registry to
// the Pushgateway at url under job, grouped by host name.
func NewPushgatewayPusher(url, job string) *push.Pusher {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return push.New(url, job).
		Grouping("instance", host).
		Gatherer(prometheus.DefaultGatherer)
}
