package domain

const (
	OwnerUser  = "user"
	OwnerGuest = "guest"
)

// Owner identifies whose cart (or guest order) something belongs to. It is
// either an authenticated user or an anonymous session, never both.
type Owner struct {
	kind string
	id   string
}

func UserOwner(userID string) Owner { return Owner{kind: OwnerUser, id: userID} }

func GuestOwner(sessionID string) Owner { return Owner{kind: OwnerGuest, id: sessionID} }

// OwnerFrom rebuilds an Owner from its stored columns. Unknown kinds or empty
// ids yield the zero Owner.
func OwnerFrom(kind, id string) Owner {
	if id == "" {
		return Owner{}
	}
	switch kind {
	case OwnerUser:
		return UserOwner(id)
	case OwnerGuest:
		return GuestOwner(id)
	}
	return Owner{}
}

// ResolveOwner prefers the user id and falls back to the session id.
func ResolveOwner(userID, sessionID string) (Owner, bool) {
	if userID != "" {
		return UserOwner(userID), true
	}
	if sessionID != "" {
		return GuestOwner(sessionID), true
	}
	return Owner{}, false
}

func (o Owner) Kind() string { return o.kind }
func (o Owner) ID() string   { return o.id }
func (o Owner) IsZero() bool { return o.id == "" }

func (o Owner) UserID() (string, bool) {
	if o.kind == OwnerUser {
		return o.id, true
	}
	return "", false
}

func (o Owner) SessionID() (string, bool) {
	if o.kind == OwnerGuest {
		return o.id, true
	}
	return "", false
}

func (o Owner) String() string {
	if o.IsZero() {
		return "none"
	}
	return o.kind + ":" + o.id
}
