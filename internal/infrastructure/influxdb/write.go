package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDeviceValue holds one point per device change.
const MeasurementDeviceValue = "device_value"

// WriteDeviceValue records the value a device was set to.
//
// Switches are written as 0 or 1, blinds as their 0..100 level. source
// tells bridge commands ("voice") apart from field reports ("field").
//
//	client.WriteDeviceValue("cucina", "tapparella_sud", "blind", 40, "voice")
func (c *Client) WriteDeviceValue(room, device, kind string, value float64, source string) {
	c.WriteDeviceValueAt(room, device, kind, value, source, time.Now())
}

// WriteDeviceValueAt is WriteDeviceValue with an explicit timestamp.
func (c *Client) WriteDeviceValueAt(room, device, kind string, value float64, source string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(deviceValuePoint(room, device, kind, value, source, at))
}

func deviceValuePoint(room, device, kind string, value float64, source string, at time.Time) *write.Point {
	tags := map[string]string{
		"room":   room,
		"device": device,
		"kind":   kind,
	}
	if source != "" {
		tags["source"] = source
	}

	return write.NewPoint(
		MeasurementDeviceValue,
		tags,
		map[string]interface{}{"value": value},
		at,
	)
}
