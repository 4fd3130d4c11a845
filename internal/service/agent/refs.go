package agent

import (
	"fmt"
	"strconv"
	"strings"
)

// ordinals maps the words users actually say to 1-based positions.
var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"last": -1,
}

// resolveRef turns a human reference ("2", 2, "the second one", "last") into
// a listing id from the given result page. The page belongs to one session's
// current search handle, so references never cross sessions. A stale or
// out-of-range reference is a descriptive miss.
func resolveRef(ids []string, ref any) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("there are no search results to refer to; run a search first")
	}

	pos, err := refPosition(ref)
	if err != nil {
		return "", err
	}
	if pos == -1 {
		pos = len(ids)
	}
	if pos < 1 || pos > len(ids) {
		return "", fmt.Errorf("result %d is not on the current page (it has %d results)", pos, len(ids))
	}
	return ids[pos-1], nil
}

func refPosition(ref any) (int, error) {
	switch v := ref.(type) {
	case int:
		return v, nil
	case float64: // decoded JSON numbers
		return int(v), nil
	case string:
		text := strings.ToLower(strings.TrimSpace(v))
		if n, err := strconv.Atoi(text); err == nil {
			return n, nil
		}
		for _, word := range strings.FieldsFunc(text, func(r rune) bool {
			return r == ' ' || r == '-' || r == ','
		}) {
			if n, ok := ordinals[word]; ok {
				return n, nil
			}
			if n, err := strconv.Atoi(word); err == nil {
				return n, nil
			}
		}
		return 0, fmt.Errorf("could not understand the reference %q", v)
	default:
		return 0, fmt.Errorf("could not understand the reference %v", ref)
	}
}
