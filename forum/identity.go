package forum

// Identity is the caller as asserted by the authentication layer.
type Identity struct {
	UserID     uint
	Name       string
	Role       string
	Location   string
	Privileged bool
}

// Authenticated reports whether the identity names a user.
func (id Identity) Authenticated() bool { return id.UserID != 0 }

// canManage reports whether id may mutate an item authored by authorID.
func (id Identity) canManage(authorID uint) bool {
	return id.Authenticated() && (id.Privileged || id.UserID == authorID)
}

func requireIdentity(id Identity) error {
	if !id.Authenticated() {
		return newError(ErrUnauthorized, "sign in required")
	}
	return nil
}
