// Package law defines the fixed rule set every state-changing action must
// satisfy, and the enforcement engine that evaluates it.
package law

// Context carries the named facts a predicate is evaluated against. Absent
// optional fields are treated as the least-permissive value (fail-closed);
// a law only treats absence as "does not apply" where its own definition
// says so.
type Context map[string]any

// Bool returns the field as a bool. Anything other than an explicit true,
// including absence, nil, or a non-bool value, reads as false.
func (c Context) Bool(key string) bool {
	v, ok := c[key].(bool)
	return ok && v
}

// Has reports whether the field is present at all, regardless of value.
func (c Context) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Int returns the field as an int. JSON decoding yields float64, so both
// numeric representations are accepted. Absent or non-numeric reads as 0.
func (c Context) Int(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// String returns the field as a string, or "" when absent or non-string.
func (c Context) String(key string) string {
	v, _ := c[key].(string)
	return v
}

// Strings returns the field as a string slice. A []any (the JSON decoding of
// an array) is converted element-wise; non-string elements are dropped.
func (c Context) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Predicate is a pure function of a context. It never mutates shared state.
// A non-compliant result carries the reason the law is violated.
type Predicate func(c Context) (compliant bool, reason string)

// Law is one named rule in the fixed registry. Identity is the numeric ID.
type Law struct {
	ID          int
	Name        string
	Description string
	predicate   Predicate
}

// Evaluate runs the law's predicate against the context.
func (l Law) Evaluate(c Context) (bool, *Violation) {
	compliant, reason := l.predicate(c)
	if compliant {
		return true, nil
	}
	return false, &Violation{LawID: l.ID, LawName: l.Name, Reason: reason}
}

// Violation records one failed law with its reason.
type Violation struct {
	LawID   int    `json:"law_id"`
	LawName string `json:"law_name"`
	Reason  string `json:"reason"`
}
