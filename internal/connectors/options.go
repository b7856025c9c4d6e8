package connectors

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

// lookup returns the first present key; source configs accept both
// snake_case and camelCase spellings.
func lookup(cfg models.JSONMap, keys ...string) (interface{}, bool) {
	for _, key := range keys {
		if v, ok := cfg[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func optionalString(cfg models.JSONMap, keys ...string) (string, error) {
	v, ok := lookup(cfg, keys...)
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", models.NewConfigurationError("%s must be a string", keys[0])
	}
	return s, nil
}

func requiredString(cfg models.JSONMap, keys ...string) (string, error) {
	s, err := optionalString(cfg, keys...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", models.NewConfigurationError("%s is required", keys[0])
	}
	return s, nil
}

func optionalInt(cfg models.JSONMap, keys ...string) (int, bool, error) {
	v, ok := lookup(cfg, keys...)
	if !ok {
		return 0, false, nil
	}

	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, false, models.NewConfigurationError("%s must be an integer", keys[0])
		}
		return int(n), true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false, models.NewConfigurationError("%s must be an integer", keys[0])
		}
		return int(i), true, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false, models.NewConfigurationError("%s must be an integer", keys[0])
		}
		return i, true, nil
	}
	return 0, false, models.NewConfigurationError("%s must be an integer", keys[0])
}

func optionalObject(cfg models.JSONMap, keys ...string) (map[string]interface{}, error) {
	v, ok := lookup(cfg, keys...)
	if !ok {
		return nil, nil
	}
	switch m := v.(type) {
	case map[string]interface{}:
		return m, nil
	case models.JSONMap:
		return m, nil
	}
	return nil, models.NewConfigurationError("%s must be an object", keys[0])
}

func optionalStringMap(cfg models.JSONMap, keys ...string) (map[string]string, error) {
	obj, err := optionalObject(cfg, keys...)
	if err != nil || obj == nil {
		return nil, err
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			return nil, models.NewConfigurationError("%s.%s must be a string", keys[0], k)
		}
		out[k] = s
	}
	return out, nil
}

// boundedDuration returns the requested duration, or fallback when unset,
// never exceeding ceiling.
func boundedDuration(requested, fallback, ceiling time.Duration) time.Duration {
	d := requested
	if d <= 0 {
		d = fallback
	}
	if ceiling > 0 && (d <= 0 || d > ceiling) {
		d = ceiling
	}
	return d
}

// boundedInt returns requested clamped to [1, ceiling]; unset picks the ceiling.
func boundedInt(requested, ceiling int) int {
	if ceiling <= 0 {
		if requested <= 0 {
			return 0
		}
		return requested
	}
	if requested <= 0 || requested > ceiling {
		return ceiling
	}
	return requested
}

// stringifyValue renders a decoded JSON value as a record field value.
// Numbers keep their source spelling; nested values become compact JSON.
func stringifyValue(v interface{}) (*string, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return models.NormalizeFieldValue(t), nil
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("cannot encode value of type %T: %w", v, err)
		}
		s = string(data)
	}
	return &s, nil
}
