package entity

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

func decodeStrict(entity string, record map[string]interface{}, out interface{}, required []string) error {
	for _, k := range required {
		if _, ok := record[k]; !ok {
			return &SchemaError{Entity: entity, Field: k, Err: fmt.Errorf("is required")}
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}

	if err := dec.Decode(record); err != nil {
		return &SchemaError{Entity: entity, Err: err}
	}

	return nil
}
