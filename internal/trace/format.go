package trace

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects how a StreamTracer or a RingTracer.Dump renders events:
// a scrollback-friendly line per event, one JSON object per line, or a
// Chrome Trace Viewer document that plots driver turns and batches on a
// timeline.
type Format uint8

const (
	FormatAuto Format = iota
	FormatText
	FormatNDJSON
	FormatChrome
)

// ParseFormat parses an explicit format name. Picking a format from an
// output path's extension is resolveFormat's job, not this function's.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "auto":
		return FormatAuto, nil
	case "text":
		return FormatText, nil
	case "ndjson":
		return FormatNDJSON, nil
	case "chrome":
		return FormatChrome, nil
	default:
		return FormatAuto, fmt.Errorf("invalid format: %q (expected: auto|text|ndjson|chrome)", s)
	}
}

// FormatEvent renders ev in the requested format. FormatAuto falls back to
// FormatText: resolving "auto" to a concrete format from a file extension is
// tracer.New's job, since only it knows the output path.
func FormatEvent(ev *Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	case FormatChrome:
		return formatChrome(ev)
	default:
		return formatText(ev)
	}
}

type ndjsonEvent struct {
	Time     string            `json:"time"`
	Seq      uint64            `json:"seq"`
	Kind     string            `json:"kind"`
	Scope    string            `json:"scope"`
	SpanID   uint64            `json:"span_id"`
	ParentID uint64            `json:"parent_id,omitempty"`
	GID      uint64            `json:"gid,omitempty"`
	Name     string            `json:"name"`
	Detail   string            `json:"detail,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func formatNDJSON(ev *Event) []byte {
	j := ndjsonEvent{
		Time:     ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		GID:      ev.GID,
		Name:     ev.Name,
		Detail:   ev.Detail,
		Extra:    ev.Extra,
	}
	data, err := json.Marshal(j)
	if err != nil {
		return []byte("{}\n")
	}
	return append(data, '\n')
}

// kindGlyph is the text-format marker for an event's direction: span entry,
// span exit, an instant marker, or a heartbeat.
func kindGlyph(k Kind) string {
	switch k {
	case KindSpanBegin:
		return "→" // →
	case KindSpanEnd:
		return "←" // ←
	case KindPoint:
		return "•" // •
	case KindHeartbeat:
		return "♡" // ♡
	default:
		return " "
	}
}

// formatText renders one scrollback line: "[seq N] →/← name (detail) {extra}".
// Nested spans (ParentID != 0) get a two-space indent; deeper nesting isn't
// tracked since the scheduler's own span tree is at most two levels deep
// (driver turn -> batch -> handler).
func formatText(ev *Event) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[seq %6d] ", ev.Seq)
	if ev.ParentID > 0 {
		sb.WriteString("  ")
	}
	sb.WriteString(kindGlyph(ev.Kind))
	sb.WriteString(" ")
	sb.WriteString(ev.Name)
	if ev.Detail != "" {
		fmt.Fprintf(&sb, " (%s)", ev.Detail)
	}
	if len(ev.Extra) > 0 {
		sb.WriteString(" {")
		first := true
		for k, v := range ev.Extra {
			if !first {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%s", k, v)
			first = false
		}
		sb.WriteString("}")
	}
	sb.WriteString("\n")
	return []byte(sb.String())
}

type chromeEvent struct {
	Name string            `json:"name"`
	Cat  string            `json:"cat"`
	Ph   string            `json:"ph"`
	Pid  uint64            `json:"pid"`
	Tid  uint64            `json:"tid"`
	TS   int64             `json:"ts"`
	Args map[string]string `json:"args,omitempty"`
}

// chromePhase maps an event Kind to the Chrome Trace Viewer phase letter:
// https://docs.google.com/document/d/1CvAClvFfyA5R-PhYUmn5OOQtYMH4h6I0nSsKchNAySU
func chromePhase(k Kind) string {
	switch k {
	case KindSpanBegin:
		return "B"
	case KindSpanEnd:
		return "E"
	default:
		return "i"
	}
}

// formatChrome renders ev as one Chrome Trace Viewer event, with the
// goroutine ID standing in for the thread ID so the UI can lay driver-loop
// and background-goroutine activity out on separate timeline tracks.
func formatChrome(ev *Event) []byte {
	args := make(map[string]string, len(ev.Extra)+1)
	if ev.Detail != "" {
		args["detail"] = ev.Detail
	}
	for k, v := range ev.Extra {
		args[k] = v
	}

	ce := chromeEvent{
		Name: ev.Name,
		Cat:  ev.Scope.String(),
		Ph:   chromePhase(ev.Kind),
		Pid:  1,
		Tid:  ev.GID,
		TS:   ev.Time.UnixMicro(),
		Args: args,
	}
	data, err := json.Marshal(ce)
	if err != nil {
		return []byte("{}")
	}
	return data
}
