package saved

// Identity is the caller's mode. The zero value is Anonymous.
type Identity struct {
	subject    string
	credential string
}

// Anonymous returns the identity whose records live in local persistence.
func Anonymous() Identity {
	return Identity{}
}

// Authenticated returns the identity whose records live in the remote
// collection. credential is an opaque bearer token attached to remote calls.
func Authenticated(subject, credential string) Identity {
	return Identity{subject: subject, credential: credential}
}

func (id Identity) IsAuthenticated() bool {
	return id.subject != ""
}

func (id Identity) Subject() string {
	return id.subject
}

func (id Identity) Credential() string {
	return id.credential
}

// String never includes the credential.
func (id Identity) String() string {
	if !id.IsAuthenticated() {
		return "anonymous"
	}
	return "user:" + id.subject
}
