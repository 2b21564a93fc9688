package auth

import "strings"

// ResolveOrigin picks the Access-Control-Allow-Origin value for origin.
//
// allowList is comma-separated. An entry matches on equality, or, for
// "*.suffix" entries, when origin ends with ".suffix". The wildcard is a
// plain suffix check: scheme and subdomain depth are not inspected, so
// "*.divine.video" accepts "http://a.b.divine.video".
//
// Without a match the first entry is returned so browsers see a fixed
// same-origin default. An empty allowList yields "".
func ResolveOrigin(origin, allowList string) string {
	var entries []string
	for _, e := range strings.Split(allowList, ",") {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return ""
	}

	if origin != "" {
		for _, e := range entries {
			if e == origin {
				return origin
			}
			if strings.HasPrefix(e, "*.") && strings.HasSuffix(origin, e[1:]) {
				return origin
			}
		}
	}
	return entries[0]
}
