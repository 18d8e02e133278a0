package openrouter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// UnixTime is a timestamp carried on the wire as seconds since the epoch.
type UnixTime struct {
	time.Time
}

func (t UnixTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("0"), nil
	}
	if t.Nanosecond() == 0 {
		return strconv.AppendInt(nil, t.Unix(), 10), nil
	}
	secs := float64(t.UnixNano()) / float64(time.Second)
	return strconv.AppendFloat(nil, secs, 'f', -1, 64), nil
}

func (t *UnixTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("openrouter: unix time: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		t.Time = time.Unix(i, 0).UTC()
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("openrouter: unix time %s: %w", n, err)
	}
	sec, frac := math.Modf(f)
	t.Time = time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
	return nil
}
