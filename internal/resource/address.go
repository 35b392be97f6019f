// Package resource defines the tagged-union ResourceAddress and
// Transformation types. Concrete backend protocols beyond plain HTTP
// are out of scope; their variants carry just enough shape to
// be dispatched by tag, never dialed.
package resource

// Kind tags which variant of ResourceAddress is populated.
type Kind int

const (
	KindNone Kind = iota
	KindLocal
	KindHTTP
	KindLHTTP
	KindPipe
	KindCGI
	KindFastCGI
	KindWAS
	KindNFS
)

// HTTPAddress is the variant this core actually dials.
type HTTPAddress struct {
	SSL         bool
	HostPort    string
	Path        string
	Addresses   []string // candidate addresses for the balancer
	Certificate string
}

// Address is the tagged union. Exactly one of the *Payload fields is meaningful, selected by
// Kind; Base/ExpandPathInfo/ExpandPath apply across every variant.
type Address struct {
	Kind Kind

	Local   *LocalPayload
	HTTP    *HTTPAddress
	LHTTP   *OpaquePayload
	Pipe    *OpaquePayload
	CGI     *OpaquePayload
	FastCGI *OpaquePayload
	WAS     *OpaquePayload
	NFS     *NFSPayload

	// Base enables relative extension of the address by a URI suffix.
	Base string
	// ExpandPathInfo / ExpandPath carry regex back-references substituted
	// at dispatch time.
	ExpandPathInfo string
	ExpandPath     string
}

type LocalPayload struct {
	Path        string
	ContentType string
}

type NFSPayload struct {
	Server      string
	Export      string
	Path        string
	ContentType string
}

// OpaquePayload represents a backend protocol this core only tags and
// forwards, never executes (LHTTP, Pipe, CGI, FastCGI, WAS — spec §1
// Out-of-scope).
type OpaquePayload struct {
	Executable string
	Args       []string
	URI        string
	Options    map[string]string
}

// WithSuffix returns a new Address whose HTTP.Path (or Local.Path) has
// suffix appended — the "relative extension" spec §3 describes. Other
// variants are returned unchanged, and the Base field is not consulted.
func (a Address) WithSuffix(suffix string) Address {
	out := a
	switch a.Kind {
	case KindHTTP:
		h := *a.HTTP
		h.Path = joinPath(h.Path, suffix)
		out.HTTP = &h
	case KindLocal:
		l := *a.Local
		l.Path = joinPath(l.Path, suffix)
		out.Local = &l
	}
	return out
}

func joinPath(base, suffix string) string {
	if base == "" {
		return suffix
	}
	if suffix == "" {
		return base
	}
	if base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if suffix[0] != '/' {
		suffix = "/" + suffix
	}
	return base + suffix
}
