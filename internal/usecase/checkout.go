package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"cstore-agent/internal/domain"
)

const (
	tokenVersion = 1

	payAPIVersion     = "2"
	payCurrency       = "USD"
	payCountry        = "US"
	payLanguage       = "en-US"
	payActionCapture  = "AuthorizeAndCapture"
	payAuthorizeNote  = "Retail Demo Store Sandbox Transaction"
	scopeAutopay      = "payments:autopay_consent"
	cardAskPermission = "AskForPermissionsConsent"
)

// correlationToken is the session snapshot handed to the payment provider and
// returned with each of its responses.
type correlationToken struct {
	Version int                      `json:"version"`
	Session domain.SessionAttributes `json:"session"`
}

// EncodeToken serializes attrs into a correlation token.
func EncodeToken(attrs domain.SessionAttributes) (string, error) {
	raw, err := json.Marshal(correlationToken{Version: tokenVersion, Session: attrs})
	if err != nil {
		return "", fmt.Errorf("usecase: encode token: %w", err)
	}
	return string(raw), nil
}

// DecodeToken restores the session carried by a correlation token.
func DecodeToken(token string) (domain.SessionAttributes, error) {
	if strings.TrimSpace(token) == "" {
		return domain.SessionAttributes{}, errors.New("usecase: decode token: token is empty")
	}
	var t correlationToken
	if err := json.Unmarshal([]byte(token), &t); err != nil {
		return domain.SessionAttributes{}, fmt.Errorf("usecase: decode token: %w", err)
	}
	if t.Version != tokenVersion {
		return domain.SessionAttributes{}, fmt.Errorf("usecase: decode token: unsupported version %d", t.Version)
	}
	return t.Session, nil
}

type setupPayRequest struct {
	Type                      string `json:"@type"`
	Version                   string `json:"@version"`
	SellerID                  string `json:"sellerId"`
	CountryOfEstablishment    string `json:"countryOfEstablishment"`
	LedgerCurrency            string `json:"ledgerCurrency"`
	CheckoutLanguage          string `json:"checkoutLanguage"`
	SandboxMode               bool   `json:"sandboxMode"`
	SandboxCustomerEmailID    string `json:"sandboxCustomerEmailId"`
	NeedAmazonShippingAddress bool   `json:"needAmazonShippingAddress"`
}

type chargePayRequest struct {
	Type                string              `json:"@type"`
	Version             string              `json:"@version"`
	SellerID            string              `json:"sellerId"`
	BillingAgreementID  string              `json:"billingAgreementId"`
	PaymentAction       string              `json:"paymentAction"`
	AuthorizeAttributes authorizeAttributes `json:"authorizeAttributes"`
}

type authorizeAttributes struct {
	Type                     string `json:"@type"`
	Version                  string `json:"@version"`
	AuthorizationReferenceID string `json:"authorizationReferenceId"`
	AuthorizationAmount      price  `json:"authorizationAmount"`
	SellerAuthorizationNote  string `json:"sellerAuthorizationNote"`
}

type price struct {
	Type         string `json:"@type"`
	Version      string `json:"@version"`
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// setupPayResult is the part of the setup response payload the skill reads.
type setupPayResult struct {
	BillingAgreementDetails struct {
		BillingAgreementID string `json:"billingAgreementId"`
	} `json:"billingAgreementDetails"`
	ErrorMessage string `json:"errorMessage"`
}

func (s *Skill) setupRequest() setupPayRequest {
	return setupPayRequest{
		Type:                      "SetupAmazonPayRequest",
		Version:                   payAPIVersion,
		SellerID:                  s.settings.MerchantID,
		CountryOfEstablishment:    payCountry,
		LedgerCurrency:            payCurrency,
		CheckoutLanguage:          payLanguage,
		SandboxMode:               true,
		SandboxCustomerEmailID:    s.settings.SandboxCustomerEmail,
		NeedAmazonShippingAddress: false,
	}
}

func (s *Skill) chargeRequest(billingAgreementID, basketID string, total float64) chargePayRequest {
	return chargePayRequest{
		Type:               "ChargeAmazonPayRequest",
		Version:            payAPIVersion,
		SellerID:           s.settings.MerchantID,
		BillingAgreementID: billingAgreementID,
		PaymentAction:      payActionCapture,
		AuthorizeAttributes: authorizeAttributes{
			Type:                     "AuthorizeAttributes",
			Version:                  payAPIVersion,
			AuthorizationReferenceID: basketID,
			AuthorizationAmount: price{
				Type:         "Price",
				Version:      payAPIVersion,
				Amount:       money(total),
				CurrencyCode: payCurrency,
			},
			SellerAuthorizationNote: payAuthorizeNote,
		},
	}
}

func logTransition(basketID string, from, to domain.CheckoutState) {
	slog.Info("checkout state changed", "basketId", basketID, "from", from, "to", to)
}

// connectionStatus returns the numeric status of a payment provider response.
func connectionStatus(r domain.Request) (int, string, error) {
	if r.Status == nil {
		return 0, "", newError(ErrorPayment, "missing_status", nil)
	}
	code, err := strconv.Atoi(strings.TrimSpace(r.Status.Code))
	if err != nil {
		return 0, "", newError(ErrorPayment, "malformed_status", err)
	}
	return code, r.Status.Message, nil
}

func (s *Skill) checkout(_ context.Context, req domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	total, err := Total(attrs)
	if err != nil {
		return attrs, domain.Response{}, err
	}

	if s.settings.MerchantID == "" {
		logTransition(attrs.BasketID, domain.CheckoutNone, domain.CheckoutNone)
		speech := fmt.Sprintf("Your total is $%s. This demo has no merchant set up so we'll just finish up now. Thanks for playing!", money(total))
		return attrs, domain.NewResponse().Speak(speech).EndSession(true).Build(), nil
	}

	if s.settings.ForcePayPermissions && !req.Context.System.User.ScopeGranted(scopeAutopay) {
		slog.Info("asking for payment permission", "scope", scopeAutopay)
		resp := domain.NewResponse().
			Speak("Please give permission to use Amazon Pay to check out.").
			Card(domain.Card{Type: cardAskPermission, Permissions: []string{scopeAutopay}}).
			Build()
		return attrs, resp, nil
	}

	token, err := EncodeToken(attrs)
	if err != nil {
		return attrs, domain.Response{}, newError(ErrorInternal, "token_encode_error", err)
	}
	logTransition(attrs.BasketID, domain.CheckoutNone, domain.CheckoutSetupRequested)

	resp := domain.NewResponse().
		Speak("Thank you!").
		Directive(domain.SendRequest(connectionSetup, token, s.setupRequest())).
		Build()
	return attrs, resp, nil
}

func (s *Skill) paySetupResponse(_ context.Context, req domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	code, message, err := connectionStatus(req.Request)
	if err != nil {
		return attrs, domain.Response{}, err
	}

	var result setupPayResult
	payloadErr := decodePayload(req.Request.Payload, &result)

	if code != 200 {
		slog.Error("payment setup failed", "status", code, "message", message, "errorMessage", result.ErrorMessage)
		speech := strings.TrimSpace("There was a problem with Amazon Pay Setup: " + message + " " + result.ErrorMessage)
		return attrs, domain.NewResponse().Speak(speech).EndSession(true).Build(), nil
	}

	if s.settings.MerchantID == "" {
		return attrs, domain.NewResponse().Speak("This demo has no merchant setup! We hope you had fun.").EndSession(true).Build(), nil
	}

	if payloadErr != nil {
		return attrs, domain.Response{}, newError(ErrorPayment, "malformed_setup_payload", payloadErr)
	}
	agreementID := result.BillingAgreementDetails.BillingAgreementID
	if agreementID == "" {
		return attrs, domain.Response{}, newError(ErrorPayment, "missing_billing_agreement", nil)
	}

	restored, err := DecodeToken(req.Request.Token)
	if err != nil {
		return attrs, domain.Response{}, newError(ErrorPayment, "invalid_token", err)
	}
	total, err := Total(restored)
	if err != nil {
		return attrs, domain.Response{}, err
	}
	logTransition(restored.BasketID, domain.CheckoutSetupRequested, domain.CheckoutSetupConfirmed)
	logTransition(restored.BasketID, domain.CheckoutSetupConfirmed, domain.CheckoutChargeRequested)

	resp := domain.NewResponse().
		Directive(domain.SendRequest(connectionCharge, req.Request.Token, s.chargeRequest(agreementID, restored.BasketID, total))).
		EndSession(true).
		Build()
	return restored, resp, nil
}

func (s *Skill) payChargeResponse(ctx context.Context, req domain.RequestEnvelope, attrs domain.SessionAttributes) (domain.SessionAttributes, domain.Response, error) {
	code, message, err := connectionStatus(req.Request)
	if err != nil {
		return attrs, domain.Response{}, err
	}
	if code != 200 {
		slog.Error("payment charge failed", "status", code, "message", message)
		logTransition(attrs.BasketID, domain.CheckoutChargeRequested, domain.CheckoutChargeFailed)
		speech := "There was a problem with Amazon Pay Charge: " + message
		return attrs, domain.NewResponse().Speak(speech).EndSession(true).Build(), nil
	}

	restored, err := DecodeToken(req.Request.Token)
	if err != nil {
		return attrs, domain.Response{}, newError(ErrorPayment, "invalid_token", err)
	}
	total, err := Total(restored)
	if err != nil {
		return attrs, domain.Response{}, err
	}

	done := domain.NewResponse().Speak("Your order will be ready when you arrive.").EndSession(true).Build()

	claimed, prev, err := s.deps.Ledger.ClaimCharge(ctx, restored.BasketID, total)
	if err != nil {
		return attrs, domain.Response{}, newError(ErrorInternal, "ledger_claim_error", err)
	}
	switch {
	case claimed:
		logTransition(restored.BasketID, domain.CheckoutChargeRequested, domain.CheckoutChargeConfirmed)
	case prev == domain.CheckoutOrderSubmitted:
		slog.Warn("order already submitted, skipping redelivered charge", "basketId", restored.BasketID)
		return restored, done, nil
	default:
		// An earlier delivery was charged but its order never went through.
		slog.Warn("charge confirmed without an order, resubmitting", "basketId", restored.BasketID, "state", prev)
	}

	user := s.customer(ctx, req, &restored)
	order, err := buildOrder(restored, user)
	if err != nil {
		return attrs, domain.Response{}, err
	}
	slog.Info("submitting order", "basketId", restored.BasketID, "items", len(order.Items), "total", order.Total, "username", order.Username)
	receipt, err := s.deps.Orders.SubmitOrder(ctx, order)
	if err != nil {
		slog.Error("order submission failed, basket left at charge confirmed", "basketId", restored.BasketID)
		return attrs, domain.Response{}, newError(ErrorUpstream, "order_submit_error", err)
	}
	orderID := fmt.Sprint(receipt.ID)
	if err := s.deps.Ledger.MarkSubmitted(ctx, restored.BasketID, orderID, total); err != nil {
		slog.Error("could not record submitted order", "basketId", restored.BasketID, "orderId", orderID, "err", err)
	}
	logTransition(restored.BasketID, domain.CheckoutChargeConfirmed, domain.CheckoutOrderSubmitted)

	if err := s.sendConfirmation(ctx, user, receipt, restored); err != nil {
		return attrs, domain.Response{}, err
	}
	return restored, done, nil
}

func (s *Skill) sendConfirmation(ctx context.Context, user domain.UserDetails, receipt domain.OrderReceipt, attrs domain.SessionAttributes) error {
	if s.deps.Email == nil {
		return nil
	}
	if strings.TrimSpace(user.Email) == "" {
		slog.Warn("no email address for customer, skipping confirmation", "username", user.Username)
		return nil
	}
	msg, err := confirmationEmail(user.Email, []domain.OrderReceipt{receipt}, attrs, s.settings.WebURL, false)
	if err != nil {
		return newError(ErrorInternal, "email_render_error", err)
	}
	if err := s.deps.Email.SendEmail(ctx, msg); err != nil {
		return newError(ErrorUpstream, "email_send_error", err)
	}
	return nil
}

func decodePayload(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}
