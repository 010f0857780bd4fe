package domain

import "encoding/json"

// Request types delivered by the voice platform.
const (
	RequestLaunch             = "LaunchRequest"
	RequestIntent             = "IntentRequest"
	RequestSessionEnded       = "SessionEndedRequest"
	RequestConnectionResponse = "Connections.Response"
)

// Dialog states reported for multi-slot intents.
const (
	DialogStarted    = "STARTED"
	DialogInProgress = "IN_PROGRESS"
	DialogCompleted  = "COMPLETED"
)

// ResolutionMatch is the entity-resolution status of a successful slot match.
const ResolutionMatch = "ER_SUCCESS_MATCH"

// RequestEnvelope is the inbound payload for one conversation turn.
type RequestEnvelope struct {
	Version string  `json:"version"`
	Session Session `json:"session"`
	Context Context `json:"context"`
	Request Request `json:"request"`
}

type Session struct {
	New        bool              `json:"new"`
	SessionID  string            `json:"sessionId"`
	Attributes SessionAttributes `json:"attributes"`
}

type Context struct {
	System System `json:"System"`
}

type System struct {
	User User `json:"user"`
}

type User struct {
	UserID      string       `json:"userId"`
	AccessToken string       `json:"accessToken,omitempty"`
	Permissions *Permissions `json:"permissions,omitempty"`
}

type Permissions struct {
	ConsentToken string           `json:"consentToken,omitempty"`
	Scopes       map[string]Scope `json:"scopes,omitempty"`
}

type Scope struct {
	Status string `json:"status"`
}

// Request carries the fields of every request type handled by the skill.
// Name, Status, Payload and Token are only set on Connections.Response.
type Request struct {
	Type        string            `json:"type"`
	RequestID   string            `json:"requestId"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Locale      string            `json:"locale,omitempty"`
	DialogState string            `json:"dialogState,omitempty"`
	Intent      Intent            `json:"intent"`
	Reason      string            `json:"reason,omitempty"`
	Name        string            `json:"name,omitempty"`
	Status      *ConnectionStatus `json:"status,omitempty"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Token       string            `json:"token,omitempty"`
}

type ConnectionStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Intent struct {
	Name               string          `json:"name"`
	ConfirmationStatus string          `json:"confirmationStatus,omitempty"`
	Slots              map[string]Slot `json:"slots,omitempty"`
}

type Slot struct {
	Name        string       `json:"name"`
	Value       string       `json:"value,omitempty"`
	Resolutions *Resolutions `json:"resolutions,omitempty"`
}

type Resolutions struct {
	ResolutionsPerAuthority []Resolution `json:"resolutionsPerAuthority"`
}

type Resolution struct {
	Authority string           `json:"authority"`
	Status    ResolutionStatus `json:"status"`
	Values    []ResolvedValue  `json:"values"`
}

type ResolutionStatus struct {
	Code string `json:"code"`
}

type ResolvedValue struct {
	Value EntityValue `json:"value"`
}

type EntityValue struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// SlotValue returns the spoken value of the named slot, or "" if absent.
func (r Request) SlotValue(name string) string {
	return r.Intent.Slots[name].Value
}

// ResolvedID returns the id of the first successful entity-resolution match
// for the named slot.
func (r Request) ResolvedID(name string) (string, bool) {
	slot, ok := r.Intent.Slots[name]
	if !ok || slot.Resolutions == nil {
		return "", false
	}
	for _, res := range slot.Resolutions.ResolutionsPerAuthority {
		if res.Status.Code == ResolutionMatch && len(res.Values) > 0 {
			return res.Values[0].Value.ID, true
		}
	}
	return "", false
}

// ScopeGranted reports whether the user granted the named permission scope.
func (u User) ScopeGranted(scope string) bool {
	if u.Permissions == nil {
		return false
	}
	s, ok := u.Permissions.Scopes[scope]
	return ok && s.Status == "GRANTED"
}
