package translation

import (
	"time"

	"github.com/danielloader/beng-proxy/internal/resource"
)

// Response accumulates the srv→req packets of one translation session
// into a structured result.
type Response struct {
	Status int // 0 means "no short-circuit status"

	Address resource.Address

	Redirect string
	Bounce   string

	Filters []resource.Transformation

	Session []byte
	Realm   string

	MaxAge time.Duration
	Vary   []string

	Check    []byte // a CHECK token the client must echo on a follow-up request
	Previous bool   // server asked the client to resubmit the previous response

	Base           string
	ExpandPath     string
	ExpandPathInfo string

	Regex         string
	InverseRegex  string
	View          string
	SecureView    string
	InvalidateTag string
}

// Apply folds one decoded packet into the Response being built, per the
// spec §6 command table.
func (resp *Response) Apply(p Packet) {
	s := string(p.Payload)
	switch p.Command {
	case CmdStatus:
		if len(p.Payload) >= 1 {
			resp.Status = int(p.Payload[0])
			if len(p.Payload) >= 2 {
				resp.Status = int(p.Payload[0]) | int(p.Payload[1])<<8
			}
		}
	case CmdPath:
		resp.Address.Kind = resource.KindLocal
		resp.Address.Local = &resource.LocalPayload{Path: s}
	case CmdContentType:
		if resp.Address.Local != nil {
			resp.Address.Local.ContentType = s
		}
	case CmdProxy:
		resp.Address.Kind = resource.KindHTTP
		resp.Address.HTTP = &resource.HTTPAddress{HostPort: s}
	case CmdCGI:
		resp.Address.Kind = resource.KindCGI
		resp.Address.CGI = &resource.OpaquePayload{URI: s}
	case CmdFastCGI:
		resp.Address.Kind = resource.KindFastCGI
		resp.Address.FastCGI = &resource.OpaquePayload{URI: s}
	case CmdWAS:
		resp.Address.Kind = resource.KindWAS
		resp.Address.WAS = &resource.OpaquePayload{URI: s}
	case CmdPipe:
		resp.Address.Kind = resource.KindPipe
		resp.Address.Pipe = &resource.OpaquePayload{URI: s}
	case CmdLHTTP:
		resp.Address.Kind = resource.KindLHTTP
		resp.Address.LHTTP = &resource.OpaquePayload{URI: s}
	case CmdNFS:
		resp.Address.Kind = resource.KindNFS
		resp.Address.NFS = &resource.NFSPayload{Path: s}
	case CmdRedirect:
		resp.Redirect = s
	case CmdBounce:
		resp.Bounce = s
	case CmdFilter:
		resp.Filters = append(resp.Filters, resource.Transformation{
			Kind:   resource.TransformFilter,
			Filter: &resource.FilterNode{Address: resource.Address{Kind: resource.KindHTTP, HTTP: &resource.HTTPAddress{HostPort: s}}},
		})
	case CmdProcess:
		resp.Filters = append(resp.Filters, resource.Transformation{Kind: resource.TransformProcessXML, ProcessOptions: resource.ProcessOptions{Container: true}})
	case CmdProcessCSS:
		resp.Filters = append(resp.Filters, resource.Transformation{Kind: resource.TransformProcessCSS, ProcessOptions: resource.ProcessOptions{Container: true}})
	case CmdProcessText:
		resp.Filters = append(resp.Filters, resource.Transformation{Kind: resource.TransformProcessText})
	case CmdSession:
		resp.Session = append([]byte(nil), p.Payload...)
	case CmdRealm:
		resp.Realm = s
	case CmdMaxAge:
		if len(p.Payload) >= 4 {
			secs := uint32(p.Payload[0]) | uint32(p.Payload[1])<<8 | uint32(p.Payload[2])<<16 | uint32(p.Payload[3])<<24
			resp.MaxAge = time.Duration(secs) * time.Second
		}
	case CmdVary:
		resp.Vary = append(resp.Vary, s)
	case CmdCheck:
		resp.Check = append([]byte(nil), p.Payload...)
	case CmdPrevious:
		resp.Previous = true
	case CmdBase:
		resp.Base = s
	case CmdExpandPath:
		resp.ExpandPath = s
	case CmdExpandPathInfo:
		resp.ExpandPathInfo = s
	case CmdRegex:
		resp.Regex = s
	case CmdInverseRegex:
		resp.InverseRegex = s
	case CmdView:
		resp.View = s
	case CmdSecureView:
		resp.SecureView = s
	case CmdInvalidate:
		resp.InvalidateTag = s
	}
}

// Chain returns the accumulated filters/processors as a resource.Chain.
// Base and ExpandPath are not applied here; they stay in the Response's
// own fields.
func (resp *Response) Chain() resource.Chain {
	return resource.Chain(resp.Filters)
}
