package template

import (
	"strconv"
	"strings"
)

// Resolve looks up a dotted path in bag. Object segments select keys and
// array segments select elements by canonical decimal index. It never
// fails: missing segments, out-of-range or malformed indexes, scalar
// intermediates, and a nil bag all yield Undefined.
func Resolve(bag *Object, path string) Value {
	if bag == nil || path == "" {
		return Undefined
	}

	current := ObjectValue(bag)
	for _, segment := range strings.Split(path, ".") {
		var (
			next Value
			ok   bool
		)
		switch current.kind {
		case KindObject:
			next, ok = current.obj.Get(segment)
		case KindArray:
			next, ok = index(current.arr, segment)
		}
		if !ok {
			return Undefined
		}
		current = next
	}
	return current
}

func index(items []Value, segment string) (Value, bool) {
	i, err := strconv.Atoi(segment)
	if err != nil || i < 0 || i >= len(items) || strconv.Itoa(i) != segment {
		return Undefined, false
	}
	return items[i], true
}
