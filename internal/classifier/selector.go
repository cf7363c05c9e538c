package classifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/petrijr/pizzaflow/pkg/api"
)

var (
	// ErrFieldMissing is wrapped in the MalformedInput error returned when
	// the selected field is absent or null.
	ErrFieldMissing = errors.New("field is missing")

	// ErrFieldNotString is wrapped when the selected field is not a JSON
	// string.
	ErrFieldNotString = errors.New("field is not a string")

	// ErrInvalidPath is returned by Selector for unsupported paths.
	ErrInvalidPath = errors.New("invalid input path")
)

// ExtractFlavour is the "$.flavour" selector. It decodes the payload as a
// JSON object and returns the flavour field verbatim. A payload that is not
// a JSON object, lacks the field, or carries a non-string value yields an
// api.ErrorMalformedInput error.
var ExtractFlavour = MustSelector(api.FlavourInputPath)

// Selector compiles a JSONPath-style input path into an api.InputSelector.
// Only member access is supported: "$.a" or "$.a.b.c". The selected value
// must be a string.
func Selector(path string) (api.InputSelector, error) {
	rest, ok := strings.CutPrefix(path, "$.")
	if !ok {
		return nil, fmt.Errorf("%w %q: must start with \"$.\"", ErrInvalidPath, path)
	}
	fields := strings.Split(rest, ".")
	for _, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("%w %q: empty member name", ErrInvalidPath, path)
		}
	}

	return func(payload []byte) (string, error) {
		raw := json.RawMessage(payload)
		for _, f := range fields {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(raw, &obj); err != nil {
				return "", api.NewError(api.ErrorMalformedInput, fmt.Errorf("%s: %w", path, err))
			}
			v, ok := obj[f]
			if !ok || isNull(v) {
				return "", api.NewError(api.ErrorMalformedInput, fmt.Errorf("%s: %w", path, ErrFieldMissing))
			}
			raw = v
		}

		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", api.NewError(api.ErrorMalformedInput, fmt.Errorf("%s: %w", path, ErrFieldNotString))
		}
		return s, nil
	}, nil
}

// MustSelector is Selector that panics on an invalid path.
func MustSelector(path string) api.InputSelector {
	sel, err := Selector(path)
	if err != nil {
		panic(err)
	}
	return sel
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
