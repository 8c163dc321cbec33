package gateway

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

func encodeBody(contentType string, params Params) ([]byte, error) {
	switch contentType {
	case ContentTypeForm:
		return []byte(encodeForm(params).Encode()), nil
	case ContentTypeJSON:
		body, err := json.Marshal(jsonParams(params))
		if err != nil {
			return nil, fmt.Errorf("unable to encode json body: %w", err)
		}
		return body, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
}

func encodeForm(params Params) url.Values {
	values := url.Values{}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := params[k].(type) {
		case []string:
			for _, item := range v {
				values.Add(k, item)
			}
		default:
			values.Set(k, formatValue(v))
		}
	}
	return values
}

// jsonParams converts decimals to bare JSON numbers; everything else is
// marshaled as-is.
func jsonParams(params Params) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		switch val := v.(type) {
		case decimal.Decimal:
			out[k] = json.Number(val.String())
		case fmt.Stringer:
			out[k] = val.String()
		default:
			out[k] = v
		}
	}
	return out
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint32:
		return strconv.FormatUint(uint64(val), 10)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
