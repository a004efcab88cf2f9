package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeFor[time.Duration]()

// loadEnv overrides fields of cfg from variables named prefix_TAG, where
// TAG comes from the env struct tag. Nested structs extend the prefix.
func loadEnv(cfg *Config, prefix string, getenv func(string) string) error {
	return setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), prefix, getenv)
}

func setFieldsFromEnv(v reflect.Value, prefix string, getenv func(string) string) error {
	t := v.Type()

	for i := range v.NumField() {
		field := v.Field(i)

		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}

		key := prefix + "_" + tag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, key, getenv); err != nil {
				return err
			}
			continue
		}

		value := strings.TrimSpace(getenv(key))
		if value == "" {
			continue
		}

		if err := setField(field, value); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}

	return nil
}

func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == durationType {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}

		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}

	return nil
}
