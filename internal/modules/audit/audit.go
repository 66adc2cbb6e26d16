// Package audit implements the per-order transition history.
//
// History is kept as typed events. The text form, one
// "[<ISO-8601 timestamp>] <event text>" line per event joined with newlines,
// is a render of those events and is also parsed back so that logs written in
// that form remain readable.
package audit

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// TimeLayout is the timestamp layout used inside the brackets of a log line.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Unassigned is reported as the current rack of an order that was never racked.
const Unassigned = "unassigned"

// Kind discriminates the event union.
type Kind string

const (
	KindOrderCreated     Kind = "ORDER_CREATED"
	KindStatusChange     Kind = "STATUS_CHANGE"
	KindRackPlacement    Kind = "RACK_PLACEMENT"
	KindRackReassignment Kind = "RACK_REASSIGNMENT"
	KindGarmentReceived  Kind = "GARMENT_RECEIVED"
	KindGarmentCompleted Kind = "GARMENT_COMPLETED"
	KindGarmentReopened  Kind = "GARMENT_REOPENED"
	KindGarmentMovedIn   Kind = "GARMENT_MOVED_IN"
	KindGarmentMovedOut  Kind = "GARMENT_MOVED_OUT"
	KindTokensGenerated  Kind = "TOKENS_GENERATED"
	KindQuantityAdjusted Kind = "QUANTITY_ADJUSTED"
	KindNote             Kind = "NOTE"
)

// Event is one entry of an order's history. Which fields are meaningful
// depends on Kind.
type Event struct {
	At      time.Time `json:"at"`
	Kind    Kind      `json:"kind"`
	From    string    `json:"from,omitempty"`    // STATUS_CHANGE
	To      string    `json:"to,omitempty"`      // STATUS_CHANGE
	Rack    string    `json:"rack,omitempty"`    // RACK_*
	Token   string    `json:"token,omitempty"`   // GARMENT_*
	Subject string    `json:"subject,omitempty"` // item name or counterpart order id
	Old     int       `json:"old,omitempty"`     // QUANTITY_ADJUSTED
	New     int       `json:"new,omitempty"`     // QUANTITY_ADJUSTED, TOKENS_GENERATED
	Text    string    `json:"text,omitempty"`    // NOTE
}

func OrderCreated(at time.Time) Event {
	return Event{At: at, Kind: KindOrderCreated}
}

func StatusChanged(at time.Time, from, to string) Event {
	return Event{At: at, Kind: KindStatusChange, From: from, To: to}
}

func PlacedOnRack(at time.Time, rack string) Event {
	return Event{At: at, Kind: KindRackPlacement, Rack: rack}
}

func ReassignedOnRack(at time.Time, rack string) Event {
	return Event{At: at, Kind: KindRackReassignment, Rack: rack}
}

func GarmentReceived(at time.Time, token string) Event {
	return Event{At: at, Kind: KindGarmentReceived, Token: token}
}

func GarmentCompleted(at time.Time, token string) Event {
	return Event{At: at, Kind: KindGarmentCompleted, Token: token}
}

func GarmentReopened(at time.Time, token string) Event {
	return Event{At: at, Kind: KindGarmentReopened, Token: token}
}

// GarmentMovedIn records a garment taken over from another order.
func GarmentMovedIn(at time.Time, token, fromOrder string) Event {
	return Event{At: at, Kind: KindGarmentMovedIn, Token: token, Subject: fromOrder}
}

// GarmentMovedOut records a garment handed over to another order.
func GarmentMovedOut(at time.Time, token, toOrder string) Event {
	return Event{At: at, Kind: KindGarmentMovedOut, Token: token, Subject: toOrder}
}

func TokensGenerated(at time.Time, item string, count int) Event {
	return Event{At: at, Kind: KindTokensGenerated, Subject: item, New: count}
}

func QuantityAdjusted(at time.Time, item string, oldQty, newQty int) Event {
	return Event{At: at, Kind: KindQuantityAdjusted, Subject: item, Old: oldQty, New: newQty}
}

func Note(at time.Time, text string) Event {
	return Event{At: at, Kind: KindNote, Text: text}
}

// Body renders the event text that follows the timestamp on a log line.
// Rack, token and subject fields are flattened to one line; note text is
// rendered as written.
func (e Event) Body() string {
	rack, token, subject := oneLine(e.Rack), oneLine(e.Token), oneLine(e.Subject)
	switch e.Kind {
	case KindOrderCreated:
		return "Order created"
	case KindStatusChange:
		return fmt.Sprintf("Status changed: %s → %s", oneLine(e.From), oneLine(e.To))
	case KindRackPlacement:
		return "Placed on rack: " + rack
	case KindRackReassignment:
		return "Reassigned on rack: " + rack
	case KindGarmentReceived:
		return "Garment received: " + token
	case KindGarmentCompleted:
		return "Garment completed: " + token
	case KindGarmentReopened:
		return "Garment reopened: " + token
	case KindGarmentMovedIn:
		return fmt.Sprintf("Garment moved from order %s: %s", subject, token)
	case KindGarmentMovedOut:
		return fmt.Sprintf("Garment moved to order %s: %s", subject, token)
	case KindTokensGenerated:
		return fmt.Sprintf("Tokens generated for %s: %d", subject, e.New)
	case KindQuantityAdjusted:
		return fmt.Sprintf("Quantity adjusted for %s: %d → %d (%+d)", subject, e.Old, e.New, e.New-e.Old)
	default:
		return e.Text
	}
}

// oneLine replaces control characters with spaces.
func oneLine(s string) string {
	if strings.IndexFunc(s, unicode.IsControl) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// String renders the event as one log line.
func (e Event) String() string {
	return "[" + e.At.UTC().Format(TimeLayout) + "] " + e.Body()
}

// Log is the ordered history of one order.
type Log []Event

// String renders the whole log in its durable text form.
func (l Log) String() string {
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

// CurrentRack returns the rack of the last placement or reassignment event.
func (l Log) CurrentRack() string {
	for i := len(l) - 1; i >= 0; i-- {
		switch l[i].Kind {
		case KindRackPlacement, KindRackReassignment:
			return l[i].Rack
		}
	}
	return Unassigned
}

// Racked reports whether the log holds any rack event.
func (l Log) Racked() bool {
	for _, e := range l {
		if e.Kind == KindRackPlacement || e.Kind == KindRackReassignment {
			return true
		}
	}
	return false
}
