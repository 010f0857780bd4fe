package usecase

import (
	"context"
	"log/slog"
	"slices"

	"cstore-agent/internal/domain"
)

const (
	responseVersion = "1.0"
	apology         = "Sorry, I had trouble doing what you asked. Please try again."
)

// Predicate decides whether a rule accepts a request. Predicates only look at
// the request type, intent name, dialog state, question marker and
// connection-response name.
type Predicate func(req domain.RequestEnvelope) bool

// HandlerFunc turns a request and the pre-turn session into the post-turn
// session and the response. attrs is a private copy the handler may mutate.
type HandlerFunc func(ctx context.Context, req domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error)

type Rule struct {
	Name   string
	Match  Predicate
	Handle HandlerFunc
}

func RequestType(t string) Predicate {
	return func(req domain.RequestEnvelope) bool {
		return req.Request.Type == t
	}
}

func IntentName(names ...string) Predicate {
	return func(req domain.RequestEnvelope) bool {
		return req.Request.Type == domain.RequestIntent && slices.Contains(names, req.Request.Intent.Name)
	}
}

func DialogState(state string) Predicate {
	return func(req domain.RequestEnvelope) bool {
		return req.Request.DialogState == state
	}
}

func QuestionMarker(markers ...string) Predicate {
	return func(req domain.RequestEnvelope) bool {
		return slices.Contains(markers, req.Session.Attributes.PreviousQuestion)
	}
}

func ConnectionResponse(name string) Predicate {
	return func(req domain.RequestEnvelope) bool {
		return req.Request.Type == domain.RequestConnectionResponse && req.Request.Name == name
	}
}

func All(ps ...Predicate) Predicate {
	return func(req domain.RequestEnvelope) bool {
		for _, p := range ps {
			if !p(req) {
				return false
			}
		}
		return true
	}
}

func Any(ps ...Predicate) Predicate {
	return func(req domain.RequestEnvelope) bool {
		for _, p := range ps {
			if p(req) {
				return true
			}
		}
		return false
	}
}

// Dispatcher routes each request to the first rule that accepts it.
type Dispatcher struct {
	rules []Rule
}

func NewDispatcher(rules ...Rule) *Dispatcher {
	return &Dispatcher{rules: rules}
}

// Match returns the first rule accepting req.
func (d *Dispatcher) Match(req domain.RequestEnvelope) (Rule, bool) {
	for _, r := range d.rules {
		if r.Match(req) {
			return r, true
		}
	}
	return Rule{}, false
}

// Dispatch runs one turn. It never returns an error: failures are logged and
// answered with an apology that keeps the session open and leaves the
// session attributes as they were before the turn.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.RequestEnvelope) domain.ResponseEnvelope {
	before := req.Session.Attributes.Clone()

	rule, ok := d.Match(req)
	if !ok {
		return catchAll(req, before, ErrNoHandler)
	}
	slog.Info("handling request", "handler", rule.Name, "requestId", req.Request.RequestID)

	after, resp, err := rule.Handle(ctx, req, req.Session.Attributes.Clone())
	if err != nil {
		return catchAll(req, before, err)
	}
	return domain.ResponseEnvelope{
		Version:           responseVersion,
		SessionAttributes: &after,
		Response:          resp,
	}
}

func catchAll(req domain.RequestEnvelope, attrs domain.SessionAttributes, err error) domain.ResponseEnvelope {
	code, reason := classify(err)
	attrsLog := []any{
		"requestId", req.Request.RequestID,
		"requestType", req.Request.Type,
		"intent", req.Request.Intent.Name,
		"code", code,
		"reason", reason,
		"err", err,
	}
	if status, ok := upstreamStatusCode(err); ok {
		attrsLog = append(attrsLog, "upstreamStatus", status)
	}
	slog.Error("turn failed", attrsLog...)

	return domain.ResponseEnvelope{
		Version:           responseVersion,
		SessionAttributes: &attrs,
		Response:          domain.NewResponse().Speak(apology).Ask(apology).Build(),
	}
}
