package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidResult rejects a result document that is not a single JSON value.
var ErrInvalidResult = errors.New("decode result: invalid JSON")

// Table is a result set ready for display.
type Table struct {
	// Keys are the record keys in backend order; Headers are their labels.
	Keys    []string
	Headers []string
	Rows    [][]string
}

// Empty reports whether the table has no rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// TableFromJSON builds a table from the first list of records in a result
// document: the value of the first key, else the first array-valued key,
// else the document itself when it is an array. Columns are the keys of
// the first record in the order the backend wrote them.
//
// A document with no list yields an empty table.
func TableFromJSON(data []byte) (Table, error) {
	if !gjson.ValidBytes(data) {
		return Table{}, ErrInvalidResult
	}
	list, ok := findList(gjson.ParseBytes(data))
	if !ok {
		return Table{}, nil
	}
	items := list.Array()
	if len(items) == 0 {
		return Table{}, nil
	}

	var t Table
	if first := items[0]; first.IsObject() {
		first.ForEach(func(key, _ gjson.Result) bool {
			t.Keys = append(t.Keys, key.Str)
			t.Headers = append(t.Headers, strings.ReplaceAll(key.Str, "_", " "))
			return true
		})
	} else {
		t.Keys = []string{"value"}
		t.Headers = []string{"value"}
	}

	for _, item := range items {
		row := make([]string, len(t.Keys))
		if item.IsObject() {
			fields := objectFields(item)
			for i, k := range t.Keys {
				if v, ok := fields[k]; ok {
					row[i] = cellText(v)
				}
			}
		} else {
			row[0] = cellText(item)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// findList returns the array the table is built from.
func findList(root gjson.Result) (list gjson.Result, ok bool) {
	if root.IsArray() {
		return root, true
	}
	if !root.IsObject() {
		return gjson.Result{}, false
	}
	// The first key wins when it holds a list; otherwise the first key
	// that does, which in document order is the same walk.
	root.ForEach(func(_, value gjson.Result) bool {
		if value.IsArray() {
			list, ok = value, true
			return false
		}
		return true
	})
	return list, ok
}

// objectFields indexes a record by key. Keys are matched literally, so
// names with dots or wildcards need no path escaping.
func objectFields(obj gjson.Result) map[string]gjson.Result {
	fields := make(map[string]gjson.Result)
	obj.ForEach(func(key, value gjson.Result) bool {
		if _, seen := fields[key.Str]; !seen {
			fields[key.Str] = value
		}
		return true
	})
	return fields
}

// cellText renders a value the way a cell shows it: strings as is, numbers
// in their shortest form, null as empty, arrays comma-joined and objects as
// compact JSON in document order.
func cellText(v gjson.Result) string {
	switch {
	case v.IsArray():
		items := v.Array()
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = cellText(item)
		}
		return strings.Join(parts, ",")
	case v.IsObject():
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v.Raw)); err != nil {
			return v.Raw
		}
		return buf.String()
	}

	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Number:
		return numberText(v)
	}
	return v.Str
}

func numberText(v gjson.Result) string {
	if i, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := strconv.ParseFloat(v.Raw, 64); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return v.Raw
}
