package usecase

import (
	"context"
	"errors"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"cstore-agent/internal/domain"
)

// Intent and slot names defined by the interaction model.
const (
	intentFindStore    = "FindStoreIntent"
	intentOrderProduct = "OrderProductIntent"
	intentCheckout     = "CheckoutIntent"
	intentYes          = "AMAZON.YesIntent"
	intentNo           = "AMAZON.NoIntent"
	intentHelp         = "AMAZON.HelpIntent"
	intentCancel       = "AMAZON.CancelIntent"
	intentStop         = "AMAZON.StopIntent"

	slotProductName           = "ProductName"
	slotAddRecommendedProduct = "AddRecommendedProduct"
	entityTypeProduct         = "Product"

	connectionSetup  = "Setup"
	connectionCharge = "Charge"
)

type CatalogClient interface {
	ProductsByCategory(ctx context.Context, category string) ([]domain.Product, error)
	Related(ctx context.Context, q domain.RelatedQuery) ([]domain.Recommendation, error)
}

type OrderClient interface {
	SubmitOrder(ctx context.Context, order domain.Order) (domain.OrderReceipt, error)
}

type RouteClient interface {
	CustomerPosition(ctx context.Context) (domain.Position, error)
}

type PlaceSearcher interface {
	Nearest(ctx context.Context, text string, near domain.Position) (domain.Place, error)
}

type IdentityClient interface {
	UserInfo(ctx context.Context, accessToken string) (domain.UserDetails, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, msg domain.Email) error
}

// OrderLedger records which baskets were charged and ordered. ClaimCharge
// reports false with the previously recorded state when the basket was
// already claimed.
type OrderLedger interface {
	ClaimCharge(ctx context.Context, basketID string, total float64) (bool, domain.CheckoutState, error)
	MarkSubmitted(ctx context.Context, basketID, orderID string, total float64) error
}

// Deps are the collaborators a Skill calls out to. Email and Ledger are
// optional: without Email no confirmation is sent, without Ledger every
// charge confirmation submits an order.
type Deps struct {
	Catalog  CatalogClient
	Orders   OrderClient
	Route    RouteClient
	Places   PlaceSearcher
	Identity IdentityClient
	Email    EmailSender
	Ledger   OrderLedger
}

// Settings is the skill behaviour that varies per deployment.
type Settings struct {
	MerchantID           string
	SandboxCustomerEmail string
	ForcePayPermissions  bool
	WebURL               string
	StoreName            string
	DemoStoreOverride    bool
	DemoStoreAddress     string
	DemoStoreMiles       float64
}

// Skill holds the intent handlers of the convenience-store ordering skill.
type Skill struct {
	deps     Deps
	settings Settings

	pick        func(n int) int
	newBasketID func() string
}

func NewSkill(d Deps, s Settings) (*Skill, error) {
	if d.Catalog == nil {
		return nil, errors.New("usecase: catalog client must not be nil")
	}
	if d.Orders == nil {
		return nil, errors.New("usecase: order client must not be nil")
	}
	if d.Route == nil {
		return nil, errors.New("usecase: route client must not be nil")
	}
	if d.Places == nil {
		return nil, errors.New("usecase: place searcher must not be nil")
	}
	if d.Identity == nil {
		return nil, errors.New("usecase: identity client must not be nil")
	}
	if d.Ledger == nil {
		d.Ledger = noLedger{}
	}
	s.MerchantID = strings.TrimSpace(s.MerchantID)
	if strings.TrimSpace(s.StoreName) == "" {
		s.StoreName = "Exxon"
	}
	return &Skill{
		deps:        d,
		settings:    s,
		pick:        rand.Intn,
		newBasketID: newBasketID,
	}, nil
}

// Rules returns the handlers in priority order.
func (s *Skill) Rules() []Rule {
	return []Rule{
		{Name: "Launch", Match: RequestType(domain.RequestLaunch), Handle: s.launch},
		{Name: "FindStore", Match: IntentName(intentFindStore), Handle: s.findStore},
		{Name: "OrderProduct", Match: All(IntentName(intentOrderProduct), DialogState(domain.DialogStarted)), Handle: s.orderProduct},
		{Name: "AddRecommendedProduct", Match: All(IntentName(intentOrderProduct), DialogState(domain.DialogInProgress)), Handle: s.addRecommendedProduct},
		{Name: "Checkout", Match: IntentName(intentCheckout), Handle: s.checkout},
		{Name: "OrderMore", Match: All(IntentName(intentYes), QuestionMarker(domain.QuestionStartPreorder, domain.QuestionOrderMore)), Handle: s.orderMore},
		{Name: "NoProductOrder", Match: All(IntentName(intentNo), QuestionMarker(domain.QuestionStartPreorder)), Handle: s.noProductOrder},
		{Name: "ToCheckout", Match: All(IntentName(intentNo), QuestionMarker(domain.QuestionOrderMore)), Handle: s.toCheckout},
		{Name: "PaySetupResponse", Match: ConnectionResponse(connectionSetup), Handle: s.paySetupResponse},
		{Name: "PayChargeResponse", Match: ConnectionResponse(connectionCharge), Handle: s.payChargeResponse},
		{Name: "Help", Match: IntentName(intentHelp), Handle: s.help},
		{Name: "CancelOrStop", Match: Any(IntentName(intentCancel), IntentName(intentStop)), Handle: s.cancelOrStop},
		{Name: "SessionEnded", Match: RequestType(domain.RequestSessionEnded), Handle: s.sessionEnded},
		{Name: "IntentReflector", Match: RequestType(domain.RequestIntent), Handle: s.intentReflector},
	}
}

// Dispatcher wires Rules into a Dispatcher.
func (s *Skill) Dispatcher() *Dispatcher {
	return NewDispatcher(s.Rules()...)
}

// newBasketID returns the first 32 characters of a random UUID.
func newBasketID() string {
	return uuid.NewString()[:32]
}

type noLedger struct{}

func (noLedger) ClaimCharge(context.Context, string, float64) (bool, domain.CheckoutState, error) {
	return true, "", nil
}

func (noLedger) MarkSubmitted(context.Context, string, string, float64) error { return nil }
