package orchestrator

import "strings"

// DissectedURI is a request URI split into the pieces the translation
// server and widget composer address separately.
type DissectedURI struct {
	Base        string // path up to and including any trailing slash the translation server matched
	Args        string // semicolon-delimited argument segment, cm4all-style (";widget=...")
	PathInfo    string // path remainder after Base/Args, used for widget state
	Query       string // raw query string, without the leading '?'
}

// Dissect splits a request-target into (base, args, path-info, query)
//. Args is the first ";"-prefixed segment in the
// path, a convention carried over unchanged from the original's URI
// argument syntax.
func Dissect(target string) DissectedURI {
	path, query, _ := strings.Cut(target, "?")

	base := path
	args := ""
	pathInfo := ""
	if idx := strings.IndexByte(path, ';'); idx >= 0 {
		base = path[:idx]
		rest := path[idx+1:]
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			args = rest[:slash]
			pathInfo = rest[slash:]
		} else {
			args = rest
		}
	}

	return DissectedURI{Base: base, Args: args, PathInfo: pathInfo, Query: query}
}
