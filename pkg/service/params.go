package service

import (
	"fmt"
	"math"
	"reflect"

	"github.com/aretw0/amrviz/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// DecodeParams maps a JSON-like document onto SolveParams. Decoding starts
// from DefaultSolveParams: absent and null fields keep their default, while
// an explicit zero is kept and later rejected by Validate.
func DecodeParams(body map[string]any) (domain.SolveParams, error) {
	params := domain.DefaultSolveParams()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &params,
		TagName:    "mapstructure",
		DecodeHook: mapstructure.DecodeHookFuncType(wholeNumberHook),
	})
	if err != nil {
		return params, err
	}
	if err := decoder.Decode(body); err != nil {
		return params, fmt.Errorf("%w: %v", domain.ErrInvalidParams, err)
	}
	return params, nil
}

// wholeNumberHook refuses to truncate JSON numbers into integer fields.
func wholeNumberHook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}
	if from.Kind() != reflect.Float64 && from.Kind() != reflect.Float32 {
		return data, nil
	}
	f := reflect.ValueOf(data).Float()
	if math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, fmt.Errorf("%v is not a whole number", data)
	}
	return data, nil
}
