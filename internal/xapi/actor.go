package xapi

// Actor is either an Agent or a Group.
//
// This is a sealed interface - only types in this package implement it.
type Actor interface {
	actorNode()

	// Identifier returns the inverse-functional identifier, or nil for an
	// anonymous group.
	Identifier() *InverseFunctionalIdentifier

	// DisplayName returns the optional human readable name.
	DisplayName() string
}

// Account identifies an actor by a login on some system.
type Account struct {
	Name     string
	HomePage IRI
}

// IdentifierKind names which slot of an InverseFunctionalIdentifier is set.
type IdentifierKind string

const (
	IdentifierNone        IdentifierKind = ""
	IdentifierMbox        IdentifierKind = "mbox"
	IdentifierMboxSHA1Sum IdentifierKind = "mbox_sha1sum"
	IdentifierOpenID      IdentifierKind = "openid"
	IdentifierAccount     IdentifierKind = "account"
)

// InverseFunctionalIdentifier uniquely identifies an actor.
//
// Exactly one field is expected to be set. When several are set, Resolve
// picks one in the order mbox, mbox_sha1sum, openid, account.
type InverseFunctionalIdentifier struct {
	Mbox        IRI
	MboxSHA1Sum string
	OpenID      string
	Account     *Account
}

// WithMbox returns an identifier holding a mailto IRI.
func WithMbox(mbox IRI) InverseFunctionalIdentifier {
	return InverseFunctionalIdentifier{Mbox: mbox}
}

// WithMboxSHA1Sum returns an identifier holding a mailbox checksum.
func WithMboxSHA1Sum(sum string) InverseFunctionalIdentifier {
	return InverseFunctionalIdentifier{MboxSHA1Sum: sum}
}

// WithOpenID returns an identifier holding an OpenID URI.
func WithOpenID(openID string) InverseFunctionalIdentifier {
	return InverseFunctionalIdentifier{OpenID: openID}
}

// WithAccount returns an identifier holding an account.
func WithAccount(name string, homePage IRI) InverseFunctionalIdentifier {
	return InverseFunctionalIdentifier{Account: &Account{Name: name, HomePage: homePage}}
}

// Count returns how many identifier slots are set.
func (i InverseFunctionalIdentifier) Count() int {
	n := 0
	if i.Mbox != "" {
		n++
	}
	if i.MboxSHA1Sum != "" {
		n++
	}
	if i.OpenID != "" {
		n++
	}
	if i.Account != nil {
		n++
	}
	return n
}

// Kind returns the slot Resolve would keep.
func (i InverseFunctionalIdentifier) Kind() IdentifierKind {
	switch {
	case i.Mbox != "":
		return IdentifierMbox
	case i.MboxSHA1Sum != "":
		return IdentifierMboxSHA1Sum
	case i.OpenID != "":
		return IdentifierOpenID
	case i.Account != nil:
		return IdentifierAccount
	default:
		return IdentifierNone
	}
}

// Resolve returns an identifier with only the winning slot set.
func (i InverseFunctionalIdentifier) Resolve() InverseFunctionalIdentifier {
	switch i.Kind() {
	case IdentifierMbox:
		return WithMbox(i.Mbox)
	case IdentifierMboxSHA1Sum:
		return WithMboxSHA1Sum(i.MboxSHA1Sum)
	case IdentifierOpenID:
		return WithOpenID(i.OpenID)
	case IdentifierAccount:
		a := *i.Account
		return InverseFunctionalIdentifier{Account: &a}
	default:
		return InverseFunctionalIdentifier{}
	}
}

// Agent is a single identified actor.
type Agent struct {
	IFI  InverseFunctionalIdentifier
	Name string
}

func (Agent) actorNode() {}

// Identifier returns the agent's identifier.
func (a Agent) Identifier() *InverseFunctionalIdentifier {
	ifi := a.IFI
	return &ifi
}

// DisplayName returns the agent's name.
func (a Agent) DisplayName() string {
	return a.Name
}

// Group is a named collection of agents. A nil IFI marks an anonymous group;
// the store rejects a non-nil IFI with no identifier set.
type Group struct {
	IFI     *InverseFunctionalIdentifier
	Name    string
	Members []Agent
}

func (Group) actorNode() {}

// Identifier returns the group's identifier or nil when anonymous.
func (g Group) Identifier() *InverseFunctionalIdentifier {
	if g.IFI == nil {
		return nil
	}
	ifi := *g.IFI
	return &ifi
}

// DisplayName returns the group's name.
func (g Group) DisplayName() string {
	return g.Name
}

// IsAnonymous reports whether the group has no identifier of its own.
func (g Group) IsAnonymous() bool {
	return g.IFI == nil || g.IFI.Count() == 0
}
