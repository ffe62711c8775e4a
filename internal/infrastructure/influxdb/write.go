package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementIdentification is the measurement recording each renderer
// identification.
const MeasurementIdentification = "renderer_identification"

// Identification outcomes.
const (
	OutcomeMatched = "matched" // a profile was found by address, user agent or header
	OutcomeForced  = "forced"  // the forced default answered
	OutcomeNone    = "none"    // nothing matched
)

// Identification is one identification result to record.
type Identification struct {
	Profile string
	Method  string
	Outcome string
	At      time.Time
}

// WriteIdentification records an identification. Profile, method and
// outcome are tags: each has a small, bounded set of values. The profile tag
// is omitted for unidentified clients.
func (c *Client) WriteIdentification(id Identification) {
	at := id.At
	if at.IsZero() {
		at = time.Now()
	}
	tags := map[string]string{
		"method":  id.Method,
		"outcome": id.Outcome,
	}
	if id.Profile != "" {
		tags["profile"] = id.Profile
	}
	c.WritePointWithTime(MeasurementIdentification, tags, map[string]any{"count": 1}, at)
}

// WritePoint writes a point timestamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. Points
// written while disconnected are dropped.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
