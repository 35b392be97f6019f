// Package translation implements the binary TLV protocol spoken to the
// translation server over a UNIX-domain stream socket, plus the client
// session state machine and the LRU response cache keyed off it (spec
// §4.5, §6 "Translation protocol").
package translation

// Command is the wire opcode of one TLV packet.
type Command uint16

const (
	CmdBegin   Command = 1
	CmdEnd     Command = 2
	CmdHost    Command = 3
	CmdURI     Command = 4
	CmdStatus  Command = 5
	CmdPath    Command = 6

	CmdContentType Command = 7
	CmdProxy       Command = 8
	CmdRedirect    Command = 9
	CmdFilter      Command = 10
	CmdProcess     Command = 11
	CmdSession     Command = 12

	CmdCGI     Command = 19
	CmdAJP     Command = 30
	CmdView    Command = 34
	CmdFastCGI Command = 33

	CmdBase        Command = 40
	CmdInvalidate  Command = 42
	CmdUserAgent   Command = 35
	CmdQueryString Command = 38

	CmdPipe Command = 39
	CmdNFS  Command = 71
	CmdLHTTP Command = 72
	CmdWAS   Command = 66

	CmdMaxAge Command = 36
	CmdVary   Command = 37

	CmdCheck    Command = 64
	CmdPrevious Command = 65
	CmdBounce   Command = 54
	CmdRealm    Command = 68

	CmdExpandPathInfo Command = 83
	CmdExpandPath     Command = 84

	CmdRegex        Command = 79
	CmdInverseRegex Command = 80
	CmdProcessCSS   Command = 74
	CmdProcessText  Command = 81

	CmdSecureView Command = 89

	CmdRemoteHost Command = 16
)

// CmdRemoteHostAttr is REMOTE_HOST: a distinct attribute and code from
// HOST/USER_AGENT/QUERY_STRING despite all four being request-side
// identity attributes.
const CmdRemoteHostAttr Command = 16

func (c Command) String() string {
	switch c {
	case CmdBegin:
		return "BEGIN"
	case CmdEnd:
		return "END"
	case CmdHost:
		return "HOST"
	case CmdURI:
		return "URI"
	case CmdStatus:
		return "STATUS"
	case CmdPath:
		return "PATH"
	case CmdContentType:
		return "CONTENT_TYPE"
	case CmdProxy:
		return "PROXY"
	case CmdRedirect:
		return "REDIRECT"
	case CmdFilter:
		return "FILTER"
	case CmdProcess:
		return "PROCESS"
	case CmdSession:
		return "SESSION"
	case CmdCGI:
		return "CGI"
	case CmdAJP:
		return "AJP"
	case CmdView:
		return "VIEW"
	case CmdFastCGI:
		return "FASTCGI"
	case CmdBase:
		return "BASE"
	case CmdInvalidate:
		return "INVALIDATE"
	case CmdUserAgent:
		return "USER_AGENT"
	case CmdQueryString:
		return "QUERY_STRING"
	case CmdPipe:
		return "PIPE"
	case CmdNFS:
		return "NFS"
	case CmdLHTTP:
		return "LHTTP"
	case CmdWAS:
		return "WAS"
	case CmdMaxAge:
		return "MAX_AGE"
	case CmdVary:
		return "VARY"
	case CmdCheck:
		return "CHECK"
	case CmdPrevious:
		return "PREVIOUS"
	case CmdBounce:
		return "BOUNCE"
	case CmdRealm:
		return "REALM"
	case CmdExpandPathInfo:
		return "EXPAND_PATH_INFO"
	case CmdExpandPath:
		return "EXPAND_PATH"
	case CmdRegex:
		return "REGEX"
	case CmdInverseRegex:
		return "INVERSE_REGEX"
	case CmdProcessCSS:
		return "PROCESS_CSS"
	case CmdProcessText:
		return "PROCESS_TEXT"
	case CmdSecureView:
		return "SECURE_VIEW"
	case CmdRemoteHostAttr:
		return "REMOTE_HOST"
	default:
		return "UNKNOWN"
	}
}
