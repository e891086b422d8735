package dsdl

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// fanOut is the path segment that addresses every element of a list
const fanOut = "*"

// keyPath addresses values within a sample document, eg:
// "./annotations/*/rbbox" selects the rbbox of every annotation
type keyPath []string

// parseKeyPath parses a slash separated key path rooted at the sample
func parseKeyPath(p string) (keyPath, error) {

	trimmed := strings.TrimPrefix(strings.TrimSpace(p), ".")
	trimmed = strings.TrimPrefix(trimmed, "/")

	if trimmed == "" {
		return nil, errors.Errorf("empty key path %q", p)
	}

	segs := strings.Split(trimmed, "/")

	for _, seg := range segs {
		if seg == "" {
			return nil, errors.Errorf("key path %q has an empty segment", p)
		}
	}

	return keyPath(segs), nil
}

// fansOut reports whether the path selects one value per list element
func (k keyPath) fansOut() bool {
	for _, seg := range k {
		if seg == fanOut {
			return true
		}
	}

	return false
}

func (k keyPath) String() string {
	return "./" + strings.Join(k, "/")
}

// resolve returns the values the path selects in doc.  found is false when
// the path leads nowhere before its first fan out.  Below a fan out, elements
// missing the remaining keys yield nil in their place so values selected by
// paths under the same list stay aligned by position.
func (k keyPath) resolve(doc interface{}) (vals []interface{}, found bool) {

	node := doc

	for i, seg := range k {

		if seg == fanOut {
			list, ok := node.([]interface{})

			if !ok {
				return nil, false
			}

			vals = make([]interface{}, 0, len(list))

			for _, elem := range list {
				sub, ok := k[i+1:].resolve(elem)

				if !ok {
					vals = append(vals, nil)
					continue
				}

				vals = append(vals, sub...)
			}

			return vals, true
		}

		next, ok := step(node, seg)

		if !ok {
			return nil, false
		}

		node = next
	}

	return []interface{}{node}, true
}

// step descends one segment into a map key or list index
func step(node interface{}, seg string) (interface{}, bool) {

	switch t := node.(type) {
	case map[string]interface{}:
		v, ok := t[seg]
		return v, ok

	case []interface{}:
		idx, err := strconv.Atoi(seg)

		if err != nil || idx < 0 || idx >= len(t) {
			return nil, false
		}

		return t[idx], true
	}

	return nil, false
}
