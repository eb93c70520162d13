package transform

import (
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// getPath reads a dot-path ("customer.address.city") out of a nested
// map/slice structure. A missing path returns (nil, false) rather than an
// error, matching FieldMapping's "result null" substitution semantics.
func getPath(data interface{}, path string) (interface{}, bool) {
	if path == "" {
		return data, true
	}
	v, err := jsonpath.Get("$."+path, data)
	if err != nil {
		return nil, false
	}
	return v, true
}

// setPath writes value at a dot-path inside a nested map, creating
// intermediate maps as needed. jsonpath.Get is read-only, so writes are
// hand-rolled rather than borrowed from the library.
func setPath(data map[string]interface{}, path string, value interface{}) error {
	segments := strings.Split(path, ".")
	cur := data
	for i, seg := range segments {
		last := i == len(segments)-1
		if last {
			cur[seg] = value
			return nil
		}
		next, ok := cur[seg]
		if !ok || next == nil {
			newMap := make(map[string]interface{})
			cur[seg] = newMap
			cur = newMap
			continue
		}
		nextMap, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot descend into non-object field %q while setting %q", seg, path)
		}
		cur = nextMap
	}
	return nil
}

// deletePath removes a top-level or nested field by dot-path, used by
// DataFiltering's field-removal mode.
func deletePath(data map[string]interface{}, path string) {
	segments := strings.Split(path, ".")
	cur := data
	for i, seg := range segments {
		if i == len(segments)-1 {
			delete(cur, seg)
			return
		}
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			return
		}
		cur = next
	}
}
