package core

import "github.com/kube-autorollout/kube-autorollout/internal/secretstring"

// AuthKind enumerates the AuthMaterial variants.
type AuthKind int

const (
	AuthAnonymous AuthKind = iota
	AuthBasic
	AuthBearer
)

// AuthMaterial is the resolved credential the registry client presents to
// an OCI registry. Basic may be upgraded to Bearer after a 401 challenge;
// the zero value is Anonymous.
type AuthMaterial struct {
	Kind     AuthKind
	Username string
	Password secretstring.Secret
	Token    secretstring.Secret
}

// Anonymous is the no-credentials AuthMaterial.
var Anonymous = AuthMaterial{Kind: AuthAnonymous}

// Basic constructs Basic auth material.
func Basic(username, password string) AuthMaterial {
	return AuthMaterial{Kind: AuthBasic, Username: username, Password: secretstring.New(password)}
}

// Bearer constructs Bearer auth material.
func Bearer(token string) AuthMaterial {
	return AuthMaterial{Kind: AuthBearer, Token: secretstring.New(token)}
}

// String renders a redacted description, safe for logging.
func (a AuthMaterial) String() string {
	switch a.Kind {
	case AuthBasic:
		return "Basic(" + a.Username + ", " + a.Password.String() + ")"
	case AuthBearer:
		return "Bearer(" + a.Token.String() + ")"
	default:
		return "Anonymous"
	}
}
