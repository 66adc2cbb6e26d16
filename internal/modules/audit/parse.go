package audit

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	linePattern     = regexp.MustCompile(`^\[([^\]]+)\] ?(.*)$`)
	statusPattern   = regexp.MustCompile(`^Status changed: (\S+) → (\S+)$`)
	placedPattern   = regexp.MustCompile(`^Placed on rack: (.+)$`)
	reassignPattern = regexp.MustCompile(`^Reassigned on rack: (.+)$`)
	receivedPattern = regexp.MustCompile(`^Garment received: (.+)$`)
	donePattern     = regexp.MustCompile(`^Garment completed: (.+)$`)
	reopenPattern   = regexp.MustCompile(`^Garment reopened: (.+)$`)
	movedInPattern  = regexp.MustCompile(`^Garment moved from order (\S+): (.+)$`)
	movedOutPattern = regexp.MustCompile(`^Garment moved to order (\S+): (.+)$`)
	tokensPattern   = regexp.MustCompile(`^Tokens generated for (.+): (\d+)$`)
	qtyPattern      = regexp.MustCompile(`^Quantity adjusted for (.+): (\d+) → (\d+) \([+-]\d+\)$`)

	// rackPattern matches either rack grammar anywhere in a text blob.
	rackPattern = regexp.MustCompile(`(?m)^\[[^\]]+\] ?(?:Placed|Reassigned) on rack: (.+?)\s*$`)
)

// Parse decodes a text log into events. Lines matching no known grammar
// become notes, and lines without a timestamp continue the previous note, so
// any text produced by String or written by hand decodes without error.
func Parse(blob string) Log {
	var log Log
	for _, raw := range strings.Split(blob, "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		m := linePattern.FindStringSubmatch(line)
		var at time.Time
		var ok bool
		if m != nil {
			at, ok = parseTime(m[1])
		}
		if !ok {
			if n := len(log); n > 0 && log[n-1].Kind == KindNote {
				log[n-1].Text += "\n" + line
				continue
			}
			log = append(log, Note(time.Time{}, line))
			continue
		}
		log = append(log, parseBody(at, m[2]))
	}
	return log
}

// CurrentRack scans a text log for the last rack placement or reassignment
// and returns its rack id, or Unassigned.
func CurrentRack(blob string) string {
	matches := rackPattern.FindAllStringSubmatch(blob, -1)
	if len(matches) == 0 {
		return Unassigned
	}
	return matches[len(matches)-1][1]
}

func parseBody(at time.Time, body string) Event {
	if body == "Order created" {
		return OrderCreated(at)
	}
	if m := statusPattern.FindStringSubmatch(body); m != nil {
		return StatusChanged(at, m[1], m[2])
	}
	if m := placedPattern.FindStringSubmatch(body); m != nil {
		return PlacedOnRack(at, strings.TrimSpace(m[1]))
	}
	if m := reassignPattern.FindStringSubmatch(body); m != nil {
		return ReassignedOnRack(at, strings.TrimSpace(m[1]))
	}
	if m := receivedPattern.FindStringSubmatch(body); m != nil {
		return GarmentReceived(at, m[1])
	}
	if m := donePattern.FindStringSubmatch(body); m != nil {
		return GarmentCompleted(at, m[1])
	}
	if m := reopenPattern.FindStringSubmatch(body); m != nil {
		return GarmentReopened(at, m[1])
	}
	if m := movedInPattern.FindStringSubmatch(body); m != nil {
		return GarmentMovedIn(at, m[2], m[1])
	}
	if m := movedOutPattern.FindStringSubmatch(body); m != nil {
		return GarmentMovedOut(at, m[2], m[1])
	}
	if m := tokensPattern.FindStringSubmatch(body); m != nil {
		n, _ := strconv.Atoi(m[2])
		return TokensGenerated(at, m[1], n)
	}
	if m := qtyPattern.FindStringSubmatch(body); m != nil {
		oldQty, _ := strconv.Atoi(m[2])
		newQty, _ := strconv.Atoi(m[3])
		return QuantityAdjusted(at, m[1], oldQty, newQty)
	}
	return Note(at, body)
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
