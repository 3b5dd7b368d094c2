package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AsDocument normalizes the shapes an embedded document can decode into.
func AsDocument(val interface{}) (map[string]interface{}, bool) {
	switch v := val.(type) {
	case map[string]interface{}:
		return v, true
	case primitive.M:
		return v, true
	case primitive.D:
		return v.Map(), true
	}
	return nil, false
}

// AsSlice normalizes array values.
func AsSlice(val interface{}) []interface{} {
	switch v := val.(type) {
	case primitive.A:
		return v
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

// IDString renders an identifier value as text. ObjectIDs use their hex form.
func IDString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	}
	return fmt.Sprintf("%v", val)
}

// PointerID strips a "Class$" prefix from a stored pointer string.
func PointerID(s string) string {
	if i := strings.IndexByte(s, '$'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// GetString reads a text field; missing and nil read as "".
func GetString(doc map[string]interface{}, key string) string {
	v, ok := doc[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return IDString(v)
}

// GetBool accepts booleans and the usual string spellings.
func GetBool(doc map[string]interface{}, key string) bool {
	switch v := doc[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// GetStringSlice reads an array of ids. Elements may be plain strings,
// ObjectIDs, "Class$id" pointer strings or pointer objects with objectId.
func GetStringSlice(doc map[string]interface{}, key string) []string {
	raw := AsSlice(doc[key])
	out := make([]string, 0, len(raw))
	for _, el := range raw {
		var id string
		if sub, ok := AsDocument(el); ok {
			id = IDString(sub["objectId"])
		} else {
			id = PointerID(IDString(el))
		}
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// GetDocs reads an array of embedded documents, skipping other elements.
func GetDocs(doc map[string]interface{}, key string) []map[string]interface{} {
	raw := AsSlice(doc[key])
	out := make([]map[string]interface{}, 0, len(raw))
	for _, el := range raw {
		if sub, ok := AsDocument(el); ok {
			out = append(out, sub)
		}
	}
	return out
}

// GetFileURL reads a file field stored either as a URL string or as a file
// object with url (or name).
func GetFileURL(doc map[string]interface{}, key string) string {
	switch v := doc[key].(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		if sub, ok := AsDocument(v); ok {
			if u := GetString(sub, "url"); u != "" {
				return u
			}
			return GetString(sub, "name")
		}
	}
	return ""
}

// GetIntOffset safely converts an interface to int, defaulting to 0.
// Useful for pagination offsets.
func GetIntOffset(v interface{}) int {
	if v == nil {
		return 0
	}
	val, err := ConvertToInt(v)
	if err != nil || val < 0 {
		return 0
	}
	return val
}

func ConvertToInt(val interface{}) (int, error) {
	switch v := val.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case primitive.Decimal128:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return 0, err
		}
		return int(d.IntPart()), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	case []byte:
		return strconv.Atoi(strings.TrimSpace(string(v)))
	default:
		return 0, fmt.Errorf("cannot convert %T to int", val)
	}
}

func ConvertToFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case primitive.Decimal128:
		return strconv.ParseFloat(v.String(), 64)
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", val)
	}
}

// ConvertToDecimal reads a money amount without passing integers and
// strings through float64.
func ConvertToDecimal(val interface{}) (decimal.Decimal, error) {
	switch v := val.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int32:
		return decimal.NewFromInt32(v), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case primitive.Decimal128:
		return decimal.NewFromString(v.String())
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, fmt.Errorf("cannot convert %T to decimal", val)
	}
}
