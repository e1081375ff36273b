package config

import (
	"fmt"
	"reflect"

	"github.com/corten/mediaengine/pkg/bytesize"
	"github.com/go-viper/mapstructure/v2"
)

// ByteSize is a config-file-friendly byte count, accepting either a
// raw integer or a human-readable string like "256MB" (via
// pkg/bytesize), and always marshaling back out as an integer.
type ByteSize int64

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 { return int64(b) }

// UnmarshalText implements encoding.TextUnmarshaler for YAML/env
// string values.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := bytesize.Parse(string(text))
	if err != nil {
		return fmt.Errorf("config: parsing byte size: %w", err)
	}
	*b = ByteSize(size)
	return nil
}

// byteSizeDecodeHook lets mapstructure populate a ByteSize field from
// either a string ("256MB") or a plain number in the config source.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			size, err := bytesize.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("config: parsing byte size %q: %w", v, err)
			}
			return ByteSize(size), nil
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(int64(v)), nil
		default:
			return data, nil
		}
	}
}
