package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command is the first field of a request payload.
type Command string

const (
	CmdAuth        Command = "auth"
	CmdIsUser      Command = "isuser"
	CmdSetPass     Command = "setpass"
	CmdTryRegister Command = "tryregister"
	CmdRemoveUser  Command = "removeuser"
	CmdRemoveUser3 Command = "removeuser3"
)

const (
	fieldSep       = ":"
	minFields      = 3
	redactedSecret = "***"
)

// Request is one decoded host request.
type Request struct {
	Command     Command
	User        string
	Server      string
	Password    string
	HasPassword bool
}

// ParseRequest splits payload on every ':' and maps the leading fields.
//
// Fields past the fourth are dropped, so a password containing ':' only keeps
// the part before its first colon.
func ParseRequest(payload []byte) (Request, error) {
	parts := strings.Split(string(payload), fieldSep)
	if len(parts) < minFields {
		return Request{}, fmt.Errorf("%w: %s", ErrTooFewFields, strings.Join(parts, fieldSep))
	}
	req := Request{
		Command: Command(parts[0]),
		User:    parts[1],
		Server:  parts[2],
	}
	if len(parts) > minFields {
		req.Password = parts[3]
		req.HasPassword = true
	}
	return req, nil
}

// String renders the request for logs with the password redacted.
func (r Request) String() string {
	view := struct {
		Command  Command `json:"command"`
		User     string  `json:"user"`
		Server   string  `json:"server"`
		Password *string `json:"password"`
	}{Command: r.Command, User: r.User, Server: r.Server}
	if r.HasPassword {
		secret := redactedSecret
		view.Password = &secret
	}
	b, err := json.Marshal(view)
	if err != nil {
		return fmt.Sprintf("%s:%s:%s", r.Command, r.User, r.Server)
	}
	return string(b)
}
