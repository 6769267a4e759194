package domain

// Identity is who the widget speaks as: an anonymous visitor or an
// authenticated user. It may be replaced in place over the lifetime of
// a session (login/logout) without tearing down the transport.
type Identity struct {
	Authenticated bool   `json:"authenticated"`
	Token         string `json:"token,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	Contact       string `json:"contact,omitempty"`

	// VisitorID keys the local history cache and lets the server bind
	// reconnects from the same anonymous visitor to one conversation.
	VisitorID string `json:"visitorId"`
}

// Anonymous returns an anonymous identity for the given visitor ID.
func Anonymous(visitorID string) Identity {
	return Identity{VisitorID: visitorID}
}

// AuthenticatedIdentity returns an identity backed by a login token.
func AuthenticatedIdentity(visitorID, token, displayName, contact string) Identity {
	return Identity{
		Authenticated: true,
		Token:         token,
		DisplayName:   displayName,
		Contact:       contact,
		VisitorID:     visitorID,
	}
}

// CacheKey returns the key under which this identity's history is persisted.
// Authenticated identities are keyed by token so logout never leaks another
// identity's history into the cache.
func (id Identity) CacheKey() string {
	if id.Authenticated {
		return "user:" + id.Token
	}
	return "visitor:" + id.VisitorID
}
