package postgres

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deevus/clinic-tui/source"
)

// notifyPayload is the JSON a change trigger passes to pg_notify:
//
//	PERFORM pg_notify(TG_TABLE_NAME, json_build_object(
//	    'op', TG_OP, 'schema', TG_TABLE_SCHEMA, 'table', TG_TABLE_NAME,
//	    'record', row_to_json(NEW), 'at', now())::text);
type notifyPayload struct {
	Op     string         `json:"op"`
	Schema string         `json:"schema"`
	Table  string         `json:"table"`
	Record map[string]any `json:"record"`
	At     *time.Time     `json:"at"`
}

// decodeNotification turns a notification on channel into a ChangeEvent.
// A bare NOTIFY without payload carries no operation and is reported as a
// resync.
func decodeNotification(channel, extra string) (source.ChangeEvent, error) {
	ev := source.ChangeEvent{Resource: channel, At: time.Now()}
	if strings.TrimSpace(extra) == "" {
		ev.Op = source.OpResync
		return ev, nil
	}

	var p notifyPayload
	dec := json.NewDecoder(bytes.NewReader([]byte(extra)))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return source.ChangeEvent{}, fmt.Errorf("decoding notification on %s: %w", channel, err)
	}

	if p.Table != "" {
		ev.Resource = p.Table
	}
	ev.Schema = p.Schema
	ev.Op = source.Op(strings.ToUpper(p.Op))
	if ev.Op == "" {
		ev.Op = source.OpResync
	}
	if p.Record != nil {
		ev.Record = source.Row(p.Record)
	}
	if p.At != nil {
		ev.At = *p.At
	}
	return ev, nil
}
