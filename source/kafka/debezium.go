package kafka

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deevus/clinic-tui/source"
	"github.com/spf13/cast"
)

// Debezium metadata fields added by the ExtractNewRecordState transform
// (add.fields=op,source.ts_ms,source.schema).
const (
	fieldOp       = "__op"
	fieldDeleted  = "__deleted"
	fieldSourceTS = "__source_ts_ms"
	fieldSchema   = "__source_schema"
)

var debeziumOps = map[string]source.Op{
	"c": source.OpInsert,
	"r": source.OpInsert, // snapshot read
	"u": source.OpUpdate,
	"d": source.OpDelete,
}

// decodeMessage turns an unwrapped Debezium record into a ChangeEvent.
// Tombstones (empty values following a delete) are skipped.
func decodeMessage(resource string, value []byte) (ev source.ChangeEvent, skip bool, err error) {
	if len(bytes.TrimSpace(value)) == 0 || bytes.Equal(value, []byte("null")) {
		return source.ChangeEvent{}, true, nil
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return source.ChangeEvent{}, false, fmt.Errorf("decoding CDC record for %s: %w", resource, err)
	}

	op, ok := debeziumOps[cast.ToString(raw[fieldOp])]
	if !ok {
		op = source.OpResync
	}
	if strings.EqualFold(cast.ToString(raw[fieldDeleted]), "true") {
		op = source.OpDelete
	}

	ev = source.ChangeEvent{
		Resource: resource,
		Schema:   cast.ToString(raw[fieldSchema]),
		Op:       op,
		Record:   make(source.Row, len(raw)),
		At:       time.Now(),
	}
	if ms := cast.ToInt64(raw[fieldSourceTS]); ms > 0 {
		ev.At = time.UnixMilli(ms)
	}
	for k, v := range raw {
		if strings.HasPrefix(k, "__") {
			continue
		}
		ev.Record[k] = v
	}
	return ev, false, nil
}
