// Package stats turns the interface status into persisted per-peer
// statistics and drives the periodic collection job.
package stats

import (
	"bufio"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/leonovk/wg-rest-api/models"
)

var (
	agoPattern  = regexp.MustCompile(`(\d+)\s+(day|hour|minute|second)s?`)
	sizePattern = regexp.MustCompile(`([\d.]+)\s*([KMGT]?i?B)\s+(received|sent)`)
)

var unitSeconds = map[string]time.Duration{
	"day":    24 * time.Hour,
	"hour":   time.Hour,
	"minute": time.Minute,
	"second": time.Second,
}

var unitBytes = map[string]float64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
}

// Parser reads the text printed by "wg show <iface>".
type Parser struct {
	// Now is the clock relative handshake times are resolved against.
	Now func() time.Time
}

func (p Parser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Parse returns a record for every peer block in raw. A peer without
// handshake, transfer and endpoint lines maps to an empty record.
func (p Parser) Parse(raw string) map[string]models.PeerStat {
	result := make(map[string]models.PeerStat)
	now := p.now()

	var current string
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		if key == "peer" {
			current = value
			result[current] = models.PeerStat{}
			continue
		}
		if current == "" {
			continue
		}

		stat := result[current]
		switch key {
		case "latest handshake":
			if ts, ok := parseHandshake(value, now); ok {
				stat.LastOnline = ts.Format(models.TimeLayout)
			}
		case "transfer":
			if traffic, ok := parseTransfer(value); ok {
				stat.Traffic = traffic
			}
		case "endpoint":
			stat.LastIP = endpointHost(value)
		}
		result[current] = stat
	}
	return result
}

func parseHandshake(value string, now time.Time) (time.Time, bool) {
	if strings.EqualFold(value, "now") {
		return now, true
	}

	matches := agoPattern.FindAllStringSubmatch(value, -1)
	if len(matches) > 0 {
		var ago time.Duration
		for _, m := range matches {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return time.Time{}, false
			}
			ago += time.Duration(n) * unitSeconds[m[2]]
		}
		return now.Add(-ago), true
	}

	for _, layout := range []string{models.TimeLayout, time.RFC3339, time.UnixDate} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseTransfer(value string) (*models.Traffic, bool) {
	traffic := &models.Traffic{}
	seen := 0
	for _, m := range sizePattern.FindAllStringSubmatch(value, -1) {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, false
		}
		size := int64(n * unitBytes[m[2]])
		if m[3] == "received" {
			traffic.Received = size
		} else {
			traffic.Sent = size
		}
		seen++
	}
	return traffic, seen > 0
}

// endpointHost strips the port and IPv6 brackets from host:port.
func endpointHost(value string) string {
	if host, _, err := net.SplitHostPort(value); err == nil {
		return host
	}
	return strings.Trim(value, "[]")
}
