package domain

// Directive types returned to the platform.
const (
	DirectiveElicitSlot      = "Dialog.ElicitSlot"
	DirectiveDelegate        = "Dialog.Delegate"
	DirectiveDynamicEntities = "Dialog.UpdateDynamicEntities"
	DirectiveSendRequest     = "Connections.SendRequest"
)

// ResponseEnvelope is the outbound payload for one conversation turn.
type ResponseEnvelope struct {
	Version           string             `json:"version"`
	SessionAttributes *SessionAttributes `json:"sessionAttributes,omitempty"`
	Response          Response           `json:"response"`
}

type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	Card             *Card         `json:"card,omitempty"`
	Reprompt         *Reprompt     `json:"reprompt,omitempty"`
	Directives       []Directive   `json:"directives,omitempty"`
	ShouldEndSession *bool         `json:"shouldEndSession,omitempty"`
}

type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Reprompt struct {
	OutputSpeech OutputSpeech `json:"outputSpeech"`
}

type Card struct {
	Type        string   `json:"type"`
	Permissions []string `json:"permissions,omitempty"`
}

// Directive is the union of the directive shapes the skill emits; unused
// fields are omitted on the wire.
type Directive struct {
	Type           string           `json:"type"`
	SlotToElicit   string           `json:"slotToElicit,omitempty"`
	UpdatedIntent  *Intent          `json:"updatedIntent,omitempty"`
	UpdateBehavior string           `json:"updateBehavior,omitempty"`
	Types          []EntityListItem `json:"types,omitempty"`
	Name           string           `json:"name,omitempty"`
	Payload        any              `json:"payload,omitempty"`
	Token          string           `json:"token,omitempty"`
}

type EntityListItem struct {
	Name   string   `json:"name"`
	Values []Entity `json:"values"`
}

type Entity struct {
	ID   string                 `json:"id"`
	Name EntityValueAndSynonyms `json:"name"`
}

type EntityValueAndSynonyms struct {
	Value    string   `json:"value"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// ResponseBuilder assembles a Response in the same order the platform reads it.
type ResponseBuilder struct {
	resp Response
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{}
}

func (b *ResponseBuilder) Speak(text string) *ResponseBuilder {
	b.resp.OutputSpeech = &OutputSpeech{Type: "PlainText", Text: text}
	return b
}

// Ask sets the reprompt and keeps the session open.
func (b *ResponseBuilder) Ask(text string) *ResponseBuilder {
	b.resp.Reprompt = &Reprompt{OutputSpeech: OutputSpeech{Type: "PlainText", Text: text}}
	return b.EndSession(false)
}

func (b *ResponseBuilder) EndSession(end bool) *ResponseBuilder {
	b.resp.ShouldEndSession = &end
	return b
}

func (b *ResponseBuilder) Card(card Card) *ResponseBuilder {
	b.resp.Card = &card
	return b
}

func (b *ResponseBuilder) Directive(d Directive) *ResponseBuilder {
	b.resp.Directives = append(b.resp.Directives, d)
	return b
}

func (b *ResponseBuilder) Build() Response {
	return b.resp
}

func ElicitSlot(slot string) Directive {
	return Directive{Type: DirectiveElicitSlot, SlotToElicit: slot}
}

func Delegate(intentName string) Directive {
	return Directive{Type: DirectiveDelegate, UpdatedIntent: &Intent{Name: intentName}}
}

func ReplaceEntities(items ...EntityListItem) Directive {
	return Directive{Type: DirectiveDynamicEntities, UpdateBehavior: "REPLACE", Types: items}
}

func SendRequest(name, token string, payload any) Directive {
	return Directive{Type: DirectiveSendRequest, Name: name, Token: token, Payload: payload}
}
