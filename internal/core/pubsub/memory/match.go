package memory

import "strings"

// matchSubject applies NATS wildcard rules: "*" stands for exactly one
// token and a trailing ">" for one or more.
func matchSubject(pattern, subject string) bool {
	if pattern == "" || subject == "" {
		return false
	}
	for {
		pTok, pRest, pMore := strings.Cut(pattern, ".")
		sTok, sRest, sMore := strings.Cut(subject, ".")

		if pTok == ">" && !pMore {
			return true
		}
		if pTok != "*" && pTok != sTok {
			return false
		}
		if !pMore || !sMore {
			return pMore == sMore
		}
		pattern, subject = pRest, sRest
	}
}
