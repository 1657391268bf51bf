package util

import "reflect"

type ErrorString string

func (this ErrorString) Error() string {
	return string(this)
}

func IsReallyNil(value interface{}) bool {
	if value == nil {
		return true
	}
	switch reflect_value := reflect.ValueOf(value); reflect_value.Kind() {
	case reflect.Chan, reflect.Func, reflect.Map, reflect.Ptr,
		reflect.UnsafePointer, reflect.Interface, reflect.Slice:
		return reflect_value.IsNil()
	default:
		return false
	}
}

func PanicIfNotNil(value interface{}) {
	if !IsReallyNil(value) {
		panic(value)
	}
}
