package attrs

import "fmt"

// ExtractString extracts a string value from a key-value attribute slice.
// The slice should be formatted as [key1, value1, key2, value2, ...].
// Returns empty string if the key is not found or the value is not a string,
// error or fmt.Stringer.
func ExtractString(attrs []any, key string) string {
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		switch v := attrs[i+1].(type) {
		case string:
			return v
		case error:
			return v.Error()
		case fmt.Stringer:
			return v.String()
		}
	}
	return ""
}

// ToStringMap flattens a key-value attribute slice. Non-string keys are
// skipped; values are formatted with %v. A trailing key without value is
// dropped.
func ToStringMap(attrs []any) map[string]string {
	if len(attrs) < 2 {
		return nil
	}
	out := make(map[string]string, len(attrs)/2)
	for i := 0; i < len(attrs)-1; i += 2 {
		k, ok := attrs[i].(string)
		if !ok {
			continue
		}
		out[k] = fmt.Sprintf("%v", attrs[i+1])
	}
	return out
}
