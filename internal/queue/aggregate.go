package queue

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"stealthcompany.com/erdashboard/internal/waittime"
)

// Priority is one of the three color-coded urgency tiers shown on a card
type Priority int

const (
	Purple Priority = iota
	Yellow
	Green

	priorityCount
)

// Priorities lists the buckets from most to least urgent
var Priorities = []Priority{Purple, Yellow, Green}

func (p Priority) String() string {
	switch p {
	case Purple:
		return "purple"
	case Yellow:
		return "yellow"
	case Green:
		return "green"
	}
	return "unknown"
}

// classification vocabulary as sent by the hospital API, plus English aliases
var classifications = map[string]Priority{
	"ROXA":    Purple,
	"PURPLE":  Purple,
	"AMARELA": Yellow,
	"YELLOW":  Yellow,
	"VERDE":   Green,
	"GREEN":   Green,
}

// Classify maps a free-form classification to a bucket. AZUL/BLUE and anything
// unrecognized report ok=false.
func Classify(classification string) (Priority, bool) {
	p, ok := classifications[strings.ToUpper(classification)]
	return p, ok
}

// PatientRecord is one queue entry as returned by the hospital API
type PatientRecord struct {
	Classification string `json:"classificacao"`
	ArrivalTime    string `json:"dataChegada"`
}

// Bucket holds the count and oldest arrival for one priority
type Bucket struct {
	Count         int
	OldestArrival time.Time // zero when Count == 0
}

func (b *Bucket) add(arrival time.Time) {
	if b.Count == 0 || arrival.Before(b.OldestArrival) {
		b.OldestArrival = arrival
	}
	b.Count++
}

// Result is the reduction of one patient list
type Result struct {
	// Total counts records with a parseable arrival time, whatever their classification
	Total   int
	Buckets [priorityCount]Bucket
}

// Bucket returns the bucket for a priority
func (r Result) Bucket(p Priority) Bucket {
	if p < 0 || p >= priorityCount {
		return Bucket{}
	}
	return r.Buckets[p]
}

// Aggregate classifies a raw JSON patient list. Anything that is not a JSON array
// produces an all-zero result; records whose arrival time cannot be parsed are skipped.
func Aggregate(raw json.RawMessage, loc *time.Location) Result {
	var result Result

	for _, record := range decodeRecords(raw) {
		arrival, ok := waittime.ParseTimestamp(record.ArrivalTime, loc)
		if !ok {
			continue
		}

		result.Total++
		if p, ok := Classify(record.Classification); ok {
			result.Buckets[p].add(arrival)
		}
	}

	return result
}

// Oldest returns the earliest parseable arrival in a raw patient list together with
// the list length. ok is false when no element has a parseable arrival.
func Oldest(raw json.RawMessage, loc *time.Location) (oldest time.Time, length int, ok bool) {
	records := decodeRecords(raw)

	for _, record := range records {
		arrival, parsed := waittime.ParseTimestamp(record.ArrivalTime, loc)
		if !parsed {
			continue
		}
		if !ok || arrival.Before(oldest) {
			oldest = arrival
			ok = true
		}
	}

	return oldest, len(records), ok
}

// decodeRecords decodes each array element independently so a single malformed
// element cannot discard the rest of the list. Elements that are not objects, or
// whose fields have the wrong type, come back as empty records.
func decodeRecords(raw json.RawMessage) []PatientRecord {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil
	}

	records := make([]PatientRecord, len(elements))
	for i, element := range elements {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(element, &fields); err != nil {
			continue
		}
		records[i].Classification = stringField(fields, "classificacao")
		records[i].ArrivalTime = stringField(fields, "dataChegada")
	}
	return records
}

func stringField(fields map[string]json.RawMessage, key string) string {
	value, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return ""
	}
	return s
}
