package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cstore-agent/internal/domain"
)

type fakeCatalog struct {
	byCategory    map[string][]domain.Product
	related       map[string][]domain.Recommendation
	categoryErr   error
	relatedErr    error
	categoryCalls []string
	relatedCalls  []domain.RelatedQuery
}

func (f *fakeCatalog) ProductsByCategory(_ context.Context, category string) ([]domain.Product, error) {
	f.categoryCalls = append(f.categoryCalls, category)
	if f.categoryErr != nil {
		return nil, f.categoryErr
	}
	return f.byCategory[category], nil
}

func (f *fakeCatalog) Related(_ context.Context, q domain.RelatedQuery) ([]domain.Recommendation, error) {
	f.relatedCalls = append(f.relatedCalls, q)
	if f.relatedErr != nil {
		return nil, f.relatedErr
	}
	return f.related[q.ProductID], nil
}

type fakeOrders struct {
	receipt   domain.OrderReceipt
	err       error
	submitted []domain.Order
}

func (f *fakeOrders) SubmitOrder(_ context.Context, order domain.Order) (domain.OrderReceipt, error) {
	f.submitted = append(f.submitted, order)
	if f.err != nil {
		return domain.OrderReceipt{}, f.err
	}
	r := f.receipt
	r.Items = order.Items
	r.Total = order.Total
	return r, nil
}

type fakeRoute struct {
	pos domain.Position
	err error
}

func (f *fakeRoute) CustomerPosition(context.Context) (domain.Position, error) {
	return f.pos, f.err
}

type fakePlaces struct {
	place    domain.Place
	err      error
	lastText string
	lastNear domain.Position
}

func (f *fakePlaces) Nearest(_ context.Context, text string, near domain.Position) (domain.Place, error) {
	f.lastText = text
	f.lastNear = near
	return f.place, f.err
}

type fakeIdentity struct {
	user   domain.UserDetails
	err    error
	tokens []string
}

func (f *fakeIdentity) UserInfo(_ context.Context, accessToken string) (domain.UserDetails, error) {
	f.tokens = append(f.tokens, accessToken)
	return f.user, f.err
}

type fakeEmail struct {
	sent []domain.Email
	err  error
}

func (f *fakeEmail) SendEmail(_ context.Context, msg domain.Email) error {
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeLedger struct {
	claimed  map[string]bool
	claimErr error
	markErr  error
	marked   map[string]string
}

func (f *fakeLedger) ClaimCharge(_ context.Context, basketID string, _ float64) (bool, domain.CheckoutState, error) {
	if f.claimErr != nil {
		return false, "", f.claimErr
	}
	if f.claimed == nil {
		f.claimed = make(map[string]bool)
	}
	if f.claimed[basketID] {
		if _, ok := f.marked[basketID]; ok {
			return false, domain.CheckoutOrderSubmitted, nil
		}
		return false, domain.CheckoutChargeConfirmed, nil
	}
	f.claimed[basketID] = true
	return true, "", nil
}

func (f *fakeLedger) MarkSubmitted(_ context.Context, basketID, orderID string, _ float64) error {
	if f.markErr != nil {
		return f.markErr
	}
	if f.marked == nil {
		f.marked = make(map[string]string)
	}
	f.marked[basketID] = orderID
	return nil
}

type testEnv struct {
	catalog  *fakeCatalog
	orders   *fakeOrders
	route    *fakeRoute
	places   *fakePlaces
	identity *fakeIdentity
	email    *fakeEmail
	ledger   *fakeLedger
	settings Settings
}

func newTestEnv() *testEnv {
	return &testEnv{
		catalog: &fakeCatalog{
			byCategory: map[string][]domain.Product{
				"hot drinks":   {{ID: "coffee", Name: "Coffee", Price: 3, Image: "coffee.jpg", URL: "http://shop/coffee", Aliases: []string{"java"}}},
				"salty snacks": {{ID: "chips", Name: "Chips", Price: 5, Image: "chips.jpg", URL: "http://shop/chips"}},
			},
			related: map[string][]domain.Recommendation{
				"coffee": {{Product: domain.RecommendedProduct{ID: "donut", Name: "Donut", Price: 2.5}}},
			},
		},
		orders:   &fakeOrders{receipt: domain.OrderReceipt{ID: float64(42)}},
		route:    &fakeRoute{pos: domain.Position{-97.1, 32.7}},
		places:   &fakePlaces{place: domain.Place{AddressNumber: "12", Street: "Main St", Position: domain.Position{-97.1, 32.8}}},
		identity: &fakeIdentity{user: domain.UserDetails{Username: "jane", ProfileUserID: "5097", ProfileFirstName: "Jane", ProfileLastName: "Doe", Email: "jane@example.com"}},
		email:    &fakeEmail{},
		ledger:   &fakeLedger{},
		settings: Settings{
			MerchantID:           "MERCHANT-1",
			SandboxCustomerEmail: "sandbox@example.com",
			WebURL:               "https://shop.example.com",
			StoreName:            "Exxon",
			DemoStoreOverride:    true,
			DemoStoreAddress:     "640 Elk St.",
			DemoStoreMiles:       3,
		},
	}
}

func (e *testEnv) skill(t *testing.T) *Skill {
	t.Helper()
	s, err := NewSkill(Deps{
		Catalog:  e.catalog,
		Orders:   e.orders,
		Route:    e.route,
		Places:   e.places,
		Identity: e.identity,
		Email:    e.email,
		Ledger:   e.ledger,
	}, e.settings)
	require.NoError(t, err)
	s.newBasketID = func() string { return "basket-1" }
	s.pick = func(int) int { return 0 }
	return s
}

// catalogAttrs is a session that has already been through store lookup.
func catalogAttrs() domain.SessionAttributes {
	return domain.SessionAttributes{
		Products: map[string]domain.CatalogProduct{
			"coffee": {Name: "Coffee", Price: 3, Image: "coffee.jpg", URL: "http://shop/coffee"},
			"chips":  {Name: "Chips", Price: 5, Image: "chips.jpg", URL: "http://shop/chips"},
			"donut":  {Name: "Donut", Price: 2.5},
		},
	}
}

func launchRequest() domain.RequestEnvelope {
	return domain.RequestEnvelope{Request: domain.Request{Type: domain.RequestLaunch, RequestID: "req-1"}}
}

func intentRequest(name string, attrs domain.SessionAttributes) domain.RequestEnvelope {
	return domain.RequestEnvelope{
		Session: domain.Session{SessionID: "sess-1", Attributes: attrs},
		Request: domain.Request{Type: domain.RequestIntent, RequestID: "req-1", Intent: domain.Intent{Name: name}},
	}
}

func withDialog(req domain.RequestEnvelope, state string) domain.RequestEnvelope {
	req.Request.DialogState = state
	return req
}

func withResolvedSlot(req domain.RequestEnvelope, slot, value, id string) domain.RequestEnvelope {
	if req.Request.Intent.Slots == nil {
		req.Request.Intent.Slots = make(map[string]domain.Slot)
	}
	req.Request.Intent.Slots[slot] = domain.Slot{
		Name:  slot,
		Value: value,
		Resolutions: &domain.Resolutions{ResolutionsPerAuthority: []domain.Resolution{{
			Authority: "amzn1.er-authority." + slot,
			Status:    domain.ResolutionStatus{Code: domain.ResolutionMatch},
			Values:    []domain.ResolvedValue{{Value: domain.EntityValue{Name: value, ID: id}}},
		}}},
	}
	return req
}

func connectionResponse(name, code, message, token, payload string) domain.RequestEnvelope {
	req := domain.RequestEnvelope{Request: domain.Request{
		Type:      domain.RequestConnectionResponse,
		RequestID: "req-pay",
		Name:      name,
		Status:    &domain.ConnectionStatus{Code: code, Message: message},
		Token:     token,
	}}
	if payload != "" {
		req.Request.Payload = []byte(payload)
	}
	return req
}

func speech(t *testing.T, env domain.ResponseEnvelope) string {
	t.Helper()
	require.NotNil(t, env.Response.OutputSpeech)
	return env.Response.OutputSpeech.Text
}

func endsSession(env domain.ResponseEnvelope) bool {
	return env.Response.ShouldEndSession != nil && *env.Response.ShouldEndSession
}
