package simulate

import (
	"fmt"
	"net/url"
	"reflect"

	"github.com/integrationkit/apphost/framework"

	"github.com/mitchellh/mapstructure"
)

// ConvertToFormBody encodes form fields as an application/x-www-form-urlencoded body: keys and
// values are escaped, spaces become "+", and pairs are joined with "&" in key order.
func ConvertToFormBody(form map[string]string) []byte {
	values := make(url.Values, len(form))
	for k, v := range form {
		values.Set(k, v)
	}
	return []byte(values.Encode())
}

// ConvertFromObject turns form data into flat form fields. It accepts a map[string]string, a
// map[string]interface{}, or a struct (or pointer to struct). Values of a map[string]interface{}
// or struct may be scalars, or one level of nested map or struct whose fields become keys
// joined with "."; so {Name: "x", Address: {City: "y"}} becomes "Name"="x" and
// "Address.City"="y". Deeper nesting and nil values are rejected with an ArgumentError.
func ConvertFromObject(v interface{}) (map[string]string, error) {
	switch o := v.(type) {
	case nil:
		return nil, &framework.ArgumentError{Name: "form", Reason: "must not be nil"}
	case map[string]string:
		ret := make(map[string]string, len(o))
		for k, val := range o {
			ret[k] = val
		}
		return ret, nil
	}
	top, err := toFieldMap(v)
	if err != nil {
		return nil, &framework.ArgumentError{Name: "form", Reason: err.Error()}
	}
	ret := make(map[string]string, len(top))
	for k, val := range top {
		if err := addFormValue(ret, k, val, true); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func addFormValue(ret map[string]string, key string, val interface{}, allowNesting bool) error {
	if isNil(val) {
		return &framework.ArgumentError{Name: "form", Reason: fmt.Sprintf("value of %q is nil", key)}
	}
	if !isComposite(val) {
		ret[key] = fmt.Sprint(val)
		return nil
	}
	if !allowNesting {
		return &framework.ArgumentError{Name: "form",
			Reason: fmt.Sprintf("value of %q is nested more than one level deep", key)}
	}
	inner, err := toFieldMap(val)
	if err != nil {
		return &framework.ArgumentError{Name: "form", Reason: fmt.Sprintf("value of %q: %s", key, err)}
	}
	for k, v := range inner {
		if err := addFormValue(ret, key+"."+k, v, false); err != nil {
			return err
		}
	}
	return nil
}

// toFieldMap converts a map with string keys, or a struct, into a map of its fields.
func toFieldMap(v interface{}) (map[string]interface{}, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map keys must be strings, not %s", rv.Type().Key())
		}
		ret := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ret[iter.Key().String()] = iter.Value().Interface()
		}
		return ret, nil
	case reflect.Struct:
		ret := make(map[string]interface{})
		if err := mapstructure.Decode(rv.Interface(), &ret); err != nil {
			return nil, err
		}
		return ret, nil
	default:
		return nil, fmt.Errorf("%T is not a map or struct", v)
	}
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func isComposite(v interface{}) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct
}
