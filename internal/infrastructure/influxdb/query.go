package influxdb

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultHistoryLimit caps DeviceHistory when no limit is given.
	DefaultHistoryLimit = 500

	maxHistoryLimit = 5000
)

// HistoryPoint is one recorded value of a device.
type HistoryPoint struct {
	Time   time.Time `json:"time"`
	Room   string    `json:"room"`
	Kind   string    `json:"kind"`
	Value  float64   `json:"value"`
	Source string    `json:"source,omitempty"`
}

// DeviceHistory returns the values recorded for device since the given
// time, oldest first. device is the label WriteDeviceValue was called with.
func (c *Client) DeviceHistory(ctx context.Context, device string, since time.Time, limit int) ([]HistoryPoint, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	result, err := c.queryAPI.Query(ctx, historyQuery(c.cfg.Bucket, device, since, limit))
	if err != nil {
		return nil, fmt.Errorf("querying device history: %w", err)
	}
	defer result.Close() //nolint:errcheck // read-only stream

	points := []HistoryPoint{}
	for result.Next() {
		rec := result.Record()
		value, ok := rec.Value().(float64)
		if !ok {
			continue
		}
		points = append(points, HistoryPoint{
			Time:   rec.Time(),
			Room:   stringValue(rec.ValueByKey("room")),
			Kind:   stringValue(rec.ValueByKey("kind")),
			Value:  value,
			Source: stringValue(rec.ValueByKey("source")),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("reading device history: %w", err)
	}

	return points, nil
}

func historyQuery(bucket, device string, since time.Time, limit int) string {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", fluxString(bucket))
	fmt.Fprintf(&b, "  |> range(start: %s)\n", since.UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %s and r._field == \"value\")\n", fluxString(MeasurementDeviceValue))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r.device == %s)\n", fluxString(device))
	b.WriteString("  |> group()\n")
	b.WriteString("  |> sort(columns: [\"_time\"])\n")
	fmt.Fprintf(&b, "  |> tail(n: %d)\n", limit)
	return b.String()
}

// fluxString quotes s as a Flux string literal.
func fluxString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
