package registry

import "strings"

// MatchIdentity reports whether a record's identity path covers a candidate
// path. Matching pairs:
//
//	foo  ~ foo
//	foo  ~ foo/...
//	foo/ ~ foo
//
// An identity never matches a sibling sharing a name prefix: "foo" does not
// match "foobar".
func MatchIdentity(identity, candidate string) bool {
	identity = strings.TrimSuffix(identity, "/")
	if !strings.HasPrefix(candidate, identity) {
		return false
	}
	rest := candidate[len(identity):]
	return rest == "" || strings.HasPrefix(rest, "/")
}
