package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/buger/jsonparser"
)

// ParseBag decodes a JSON object into an ordered variable bag. Empty input
// and JSON null yield an empty bag.
func ParseBag(data []byte) (*Object, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return NewObject(), nil
	}

	value, err := ParseValue(data)
	if err != nil {
		return nil, err
	}
	if value.kind != KindObject {
		return nil, fmt.Errorf("variable bag must be a JSON object, got %s", value.kind)
	}
	return value.obj, nil
}

// ParseValue decodes any JSON document, keeping object key order.
func ParseValue(data []byte) (Value, error) {
	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return Undefined, fmt.Errorf("parse json value: %w", err)
	}
	return decodeValue(raw, dataType)
}

func decodeValue(raw []byte, dataType jsonparser.ValueType) (Value, error) {
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Undefined, fmt.Errorf("parse json string: %w", err)
		}
		return StringValue(s), nil
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(raw)
		if err != nil {
			return Undefined, fmt.Errorf("parse json number: %w", err)
		}
		return NumberValue(f), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Undefined, fmt.Errorf("parse json boolean: %w", err)
		}
		return BoolValue(b), nil
	case jsonparser.Null:
		return NullValue(), nil
	case jsonparser.Object:
		obj := NewObject()
		err := jsonparser.ObjectEach(raw, func(key []byte, value []byte, vt jsonparser.ValueType, _ int) error {
			name, err := jsonparser.ParseString(key)
			if err != nil {
				return fmt.Errorf("parse json key: %w", err)
			}
			item, err := decodeValue(value, vt)
			if err != nil {
				return err
			}
			obj.Set(name, item)
			return nil
		})
		if err != nil {
			return Undefined, err
		}
		return ObjectValue(obj), nil
	case jsonparser.Array:
		items := []Value{}
		var itemErr error
		_, err := jsonparser.ArrayEach(raw, func(value []byte, vt jsonparser.ValueType, _ int, cbErr error) {
			if itemErr != nil {
				return
			}
			if cbErr != nil {
				itemErr = cbErr
				return
			}
			item, err := decodeValue(value, vt)
			if err != nil {
				itemErr = err
				return
			}
			items = append(items, item)
		})
		if err != nil {
			return Undefined, fmt.Errorf("parse json array: %w", err)
		}
		if itemErr != nil {
			return Undefined, itemErr
		}
		return ArrayValue(items...), nil
	default:
		return Undefined, fmt.Errorf("unsupported json value type %v", dataType)
	}
}

// FromGo converts plain Go values into a Value. Map keys are sorted since Go
// maps carry no order.
func FromGo(v any) Value {
	switch typed := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return typed
	case *Object:
		return ObjectValue(typed)
	case string:
		return StringValue(typed)
	case bool:
		return BoolValue(typed)
	case float64:
		return NumberValue(typed)
	case float32:
		return NumberValue(float64(typed))
	case int:
		return NumberValue(float64(typed))
	case int64:
		return NumberValue(float64(typed))
	case int32:
		return NumberValue(float64(typed))
	case uint:
		return NumberValue(float64(typed))
	case uint64:
		return NumberValue(float64(typed))
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return StringValue(typed.String())
		}
		return NumberValue(f)
	case json.RawMessage:
		value, err := ParseValue(typed)
		if err != nil {
			return Undefined
		}
		return value
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, key := range keys {
			obj.Set(key, FromGo(typed[key]))
		}
		return ObjectValue(obj)
	case map[string]string:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, key := range keys {
			obj.Set(key, StringValue(typed[key]))
		}
		return ObjectValue(obj)
	case []any:
		items := make([]Value, len(typed))
		for i, item := range typed {
			items[i] = FromGo(item)
		}
		return ArrayValue(items...)
	case []string:
		items := make([]Value, len(typed))
		for i, item := range typed {
			items[i] = StringValue(item)
		}
		return ArrayValue(items...)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = FromGo(rv.Index(i).Interface())
		}
		return ArrayValue(items...)
	}

	// Structs and other types round-trip through encoding/json.
	data, err := json.Marshal(v)
	if err != nil {
		return Undefined
	}
	value, err := ParseValue(data)
	if err != nil {
		return Undefined
	}
	return value
}

// BagFromMap builds a bag from a plain Go map.
func BagFromMap(m map[string]any) *Object {
	return FromGo(m).obj
}
