package httpx

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"strconv"
	"strings"
)

var ErrInvalidField = errors.New("invalid form field")

// FormString returns nil when the field was not submitted at all.
func FormString(form *multipart.Form, key string) *string {
	if form == nil {
		return nil
	}
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

// FormList accepts a JSON array, a comma separated string or repeated fields.
func FormList(form *multipart.Form, key string) (*[]string, error) {
	if form == nil {
		return nil, nil
	}
	values, ok := form.Value[key]
	if !ok {
		values, ok = form.Value[key+"[]"]
	}
	if !ok || len(values) == 0 {
		return nil, nil
	}

	var out []string
	if len(values) == 1 {
		raw := strings.TrimSpace(values[0])
		if strings.HasPrefix(raw, "[") {
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return nil, ErrInvalidField
			}
		} else {
			out = strings.Split(raw, ",")
		}
	} else {
		out = values
	}

	cleaned := CleanList(out)
	return &cleaned, nil
}

func FormBool(form *multipart.Form, key string) (*bool, error) {
	raw := FormString(form, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(*raw)
	if err != nil {
		return nil, ErrInvalidField
	}
	return &b, nil
}

func FormInt(form *multipart.Form, key string) (*int, error) {
	raw := FormString(form, key)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(*raw)
	if err != nil {
		return nil, ErrInvalidField
	}
	return &i, nil
}

// FormJSON decodes a JSON encoded form field into v and reports whether it was present.
func FormJSON(form *multipart.Form, key string, v interface{}) (bool, error) {
	raw := FormString(form, key)
	if raw == nil || *raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(*raw), v); err != nil {
		return true, ErrInvalidField
	}
	return true, nil
}

// CleanList trims entries and drops empty ones.
func CleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
