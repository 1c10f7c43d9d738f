package facts

import (
	"encoding/json"
	"fmt"
)

// parseFlatJSON decodes a JSON object into a string-keyed, string-valued
// map, stringifying non-string values (numbers/bools) the way Python's
// str(filled_json[key]) does in fill_mind.
func parseFlatJSON(text string) (map[string]string, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out, nil
}
