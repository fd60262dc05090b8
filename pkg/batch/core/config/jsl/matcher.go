package jsl

// MatchExitStatus reports whether exitStatus matches pattern, where '*' matches any
// run of characters (including none) and '?' matches exactly one.
func MatchExitStatus(pattern, exitStatus string) bool {
	p, s := []rune(pattern), []rune(exitStatus)
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(s) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == s[si]):
			pi++
			si++
		case pi < len(p) && p[pi] == '*':
			star, mark = pi, si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
