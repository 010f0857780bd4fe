package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"cstore-agent/internal/domain"
)

const (
	preorderQuestion = "Would you like to pre-order items to collect when you arrive?"
	helpSpeech       = "You can say hello to me! How can I help?"

	// recommendationAccepted is the entity id of a "yes" to the suggested product.
	recommendationAccepted = "1"
)

func (s *Skill) launch(_ context.Context, _ domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	speech := fmt.Sprintf("Welcome to the C-Store Demo. Ask where your nearest %s is to start an order there.", s.settings.StoreName)
	return attrs, domain.NewResponse().Speak(speech).Ask(speech).Build(), nil
}

// findStore answers with the nearest store and, while the customer decides
// whether to pre-order, teaches the platform the product names on sale.
func (s *Skill) findStore(ctx context.Context, _ domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	address, miles, err := s.locateStore(ctx)
	if err != nil {
		return attrs, domain.Response{}, err
	}
	speech := fmt.Sprintf("There is an %s %.0f miles away at %s %s", s.settings.StoreName, miles, address, preorderQuestion)
	attrs.PreviousQuestion = domain.QuestionStartPreorder

	products, err := s.loadCatalog(ctx, &attrs)
	if err != nil {
		return attrs, domain.Response{}, err
	}

	resp := domain.NewResponse().
		Speak(speech).
		Ask(preorderQuestion).
		Directive(domain.ReplaceEntities(products)).
		Build()
	return attrs, resp, nil
}

// orderProduct adds the requested product and offers its recommendation.
func (s *Skill) orderProduct(ctx context.Context, req domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	productID, err := matchedProductID(req)
	if err != nil {
		return attrs, domain.Response{}, err
	}
	rec, err := s.Recommend(ctx, &attrs, productID)
	if err != nil {
		return attrs, domain.Response{}, err
	}
	s.AddToBasket(&attrs, productID)
	product, err := productByID(attrs, productID)
	if err != nil {
		return attrs, domain.Response{}, err
	}

	speech := fmt.Sprintf("Sure. Ordering %s for $%s. Would you like to add %s to your basket too?",
		req.Request.SlotValue(slotProductName), money(product.Price), rec.Name)
	resp := domain.NewResponse().
		Speak(speech).
		Directive(domain.ElicitSlot(slotAddRecommendedProduct)).
		Build()
	return attrs, resp, nil
}

// addRecommendedProduct handles the yes/no answer to the recommendation.
func (s *Skill) addRecommendedProduct(ctx context.Context, req domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	answer, err := recommendationAnswer(req)
	if err != nil {
		return attrs, domain.Response{}, err
	}

	speech := "Sure."
	if answer == recommendationAccepted {
		productID, err := matchedProductID(req)
		if err != nil {
			return attrs, domain.Response{}, err
		}
		rec, err := s.Recommend(ctx, &attrs, productID)
		if err != nil {
			return attrs, domain.Response{}, err
		}
		s.AddToBasket(&attrs, rec.ID)
		speech = fmt.Sprintf("Adding %s for $%s!", rec.Name, money(rec.Price))
	}
	speech += " Would you like to order anything else?"
	attrs.PreviousQuestion = domain.QuestionOrderMore

	return attrs, domain.NewResponse().Speak(speech).EndSession(false).Build(), nil
}

// recommendationAnswer reads the entity id of the AddRecommendedProduct slot
// from its first authority.
func recommendationAnswer(req domain.RequestEnvelope) (string, error) {
	slot, ok := req.Request.Intent.Slots[slotAddRecommendedProduct]
	if !ok || slot.Resolutions == nil || len(slot.Resolutions.ResolutionsPerAuthority) == 0 ||
		len(slot.Resolutions.ResolutionsPerAuthority[0].Values) == 0 {
		return "", newError(ErrorInvalidInput, "recommendation_answer_missing", nil)
	}
	return slot.Resolutions.ResolutionsPerAuthority[0].Values[0].Value.ID, nil
}

func (s *Skill) orderMore(_ context.Context, _ domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	attrs.PreviousQuestion = ""
	return attrs, domain.NewResponse().Directive(domain.Delegate(intentOrderProduct)).Build(), nil
}

func (s *Skill) noProductOrder(_ context.Context, _ domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	attrs.PreviousQuestion = ""
	return attrs, domain.NewResponse().Speak("Have a safe trip!").Build(), nil
}

func (s *Skill) toCheckout(_ context.Context, _ domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	attrs.PreviousQuestion = ""
	return attrs, domain.NewResponse().Directive(domain.Delegate(intentCheckout)).Build(), nil
}

func (s *Skill) help(_ context.Context, _ domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	return attrs, domain.NewResponse().Speak(helpSpeech).Ask(helpSpeech).Build(), nil
}

func (s *Skill) cancelOrStop(_ context.Context, _ domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	return attrs, domain.NewResponse().Speak("Goodbye!").Build(), nil
}

func (s *Skill) sessionEnded(_ context.Context, req domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	slog.Info("session ended", "sessionId", req.Session.SessionID, "reason", req.Request.Reason)
	return attrs, domain.Response{}, nil
}

// intentReflector echoes intents no other rule handles.
func (s *Skill) intentReflector(_ context.Context, req domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	speech := "You just triggered " + req.Request.Intent.Name + "."
	return attrs, domain.NewResponse().Speak(speech).Build(), nil
}
