package main

import "fmt"

// UnsupportedTypeError reports a native column type with no Laravel
// equivalent. The column is still emitted as an addColumn placeholder.
type UnsupportedTypeError struct {
	Table      string
	Column     string
	NativeType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s.%s: unsupported column type %q (emitted as addColumn placeholder)", e.Table, e.Column, e.NativeType)
}

// LossyTypeError reports a native column type that maps to a Laravel type
// which recreates it only approximately. The column is emitted as mapped.
type LossyTypeError struct {
	Table      string
	Column     string
	NativeType string
	Loss       string
}

func (e *LossyTypeError) Error() string {
	return fmt.Sprintf("%s.%s: column type %q %s", e.Table, e.Column, e.NativeType, e.Loss)
}

// UnsupportedIndexFeatureError reports an index feature the target dialect
// or the Blueprint API cannot express.
type UnsupportedIndexFeatureError struct {
	Table   string
	Index   string
	Feature string
}

func (e *UnsupportedIndexFeatureError) Error() string {
	name := e.Index
	if name == "" {
		name = "primary key"
	}
	return fmt.Sprintf("%s.%s: %s", e.Table, name, e.Feature)
}

// InvalidConfigurationError is returned before any generation starts.
type InvalidConfigurationError struct {
	Key    string
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	if e.Key == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s %s", e.Key, e.Reason)
}

func invalidConfig(key, format string, args ...any) error {
	return &InvalidConfigurationError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// MissingColumnError reports an index or foreign key that names a column
// the owning table does not have.
type MissingColumnError struct {
	Table  string
	Object string
	Column string
}

func (e *MissingColumnError) Error() string {
	name := e.Object
	if name == "" {
		name = "unnamed key"
	}
	return fmt.Sprintf("%s.%s: references missing column %q, skipped", e.Table, name, e.Column)
}
