package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"cstore-agent/internal/domain"
)

func basketAttrs() domain.SessionAttributes {
	attrs := catalogAttrs()
	attrs.BasketID = "basket-1"
	attrs.Basket = map[string]domain.BasketItem{"coffee": {Quantity: 2}, "chips": {Quantity: 1}}
	return attrs
}

func mustToken(t *testing.T, attrs domain.SessionAttributes) string {
	t.Helper()
	token, err := EncodeToken(attrs)
	require.NoError(t, err)
	return token
}

const setupOK = `{"billingAgreementDetails":{"billingAgreementId":"B01-123"}}`

// ---------------------------------------------------------------------------
// Correlation token
// ---------------------------------------------------------------------------

func TestToken_RoundTrip(t *testing.T) {
	attrs := basketAttrs()
	attrs.CognitoUser = &domain.UserDetails{Username: "jane", Email: "jane@example.com"}

	got, err := DecodeToken(mustToken(t, attrs))
	require.NoError(t, err)
	require.Equal(t, attrs, got)
}

func TestDecodeToken_Rejects(t *testing.T) {
	for name, token := range map[string]string{
		"empty":       "  ",
		"not json":    "session-snapshot",
		"old version": `{"version":0,"session":{}}`,
		"new version": `{"version":2,"session":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeToken(token)
			require.Error(t, err)
		})
	}
}

// ---------------------------------------------------------------------------
// Checkout
// ---------------------------------------------------------------------------

func TestCheckout_NoMerchantEndsSession(t *testing.T) {
	e := newTestEnv()
	e.settings.MerchantID = "   "
	out := e.skill(t).Dispatcher().Dispatch(context.Background(), intentRequest(intentCheckout, basketAttrs()))

	require.Equal(t, "Your total is $11.00. This demo has no merchant set up so we'll just finish up now. Thanks for playing!", speech(t, out))
	require.True(t, endsSession(out))
	require.Empty(t, out.Response.Directives)
}

func TestCheckout_SendsSetupRequest(t *testing.T) {
	e := newTestEnv()
	attrs := basketAttrs()
	out := e.skill(t).Dispatcher().Dispatch(context.Background(), intentRequest(intentCheckout, attrs))

	require.Equal(t, "Thank you!", speech(t, out))
	require.Len(t, out.Response.Directives, 1)
	d := out.Response.Directives[0]
	require.Equal(t, domain.DirectiveSendRequest, d.Type)
	require.Equal(t, connectionSetup, d.Name)

	payload, ok := d.Payload.(setupPayRequest)
	require.True(t, ok)
	require.Equal(t, "SetupAmazonPayRequest", payload.Type)
	require.Equal(t, "2", payload.Version)
	require.Equal(t, "MERCHANT-1", payload.SellerID)
	require.Equal(t, "sandbox@example.com", payload.SandboxCustomerEmailID)
	require.True(t, payload.SandboxMode)
	require.False(t, payload.NeedAmazonShippingAddress)

	restored, err := DecodeToken(d.Token)
	require.NoError(t, err)
	require.Equal(t, attrs, restored)
}

func TestCheckout_AsksForPayPermission(t *testing.T) {
	e := newTestEnv()
	e.settings.ForcePayPermissions = true
	out := e.skill(t).Dispatcher().Dispatch(context.Background(), intentRequest(intentCheckout, basketAttrs()))

	require.Equal(t, "Please give permission to use Amazon Pay to check out.", speech(t, out))
	require.NotNil(t, out.Response.Card)
	require.Equal(t, cardAskPermission, out.Response.Card.Type)
	require.Equal(t, []string{scopeAutopay}, out.Response.Card.Permissions)
	require.Empty(t, out.Response.Directives)
}

func TestCheckout_PermissionAlreadyGranted(t *testing.T) {
	e := newTestEnv()
	e.settings.ForcePayPermissions = true
	req := intentRequest(intentCheckout, basketAttrs())
	req.Context.System.User.Permissions = &domain.Permissions{Scopes: map[string]domain.Scope{scopeAutopay: {Status: "GRANTED"}}}

	out := e.skill(t).Dispatcher().Dispatch(context.Background(), req)
	require.Nil(t, out.Response.Card)
	require.Len(t, out.Response.Directives, 1)
}

// ---------------------------------------------------------------------------
// Setup response
// ---------------------------------------------------------------------------

func TestPaySetup_FailureEndsSession(t *testing.T) {
	out := newTestEnv().skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionSetup, "400", "Bad Request", mustToken(t, basketAttrs()), `{"errorMessage":"seller unknown"}`))

	require.Equal(t, "There was a problem with Amazon Pay Setup: Bad Request seller unknown", speech(t, out))
	require.True(t, endsSession(out))
	require.Empty(t, out.Response.Directives)
}

func TestPaySetup_NoMerchant(t *testing.T) {
	e := newTestEnv()
	e.settings.MerchantID = ""
	out := e.skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionSetup, "200", "OK", mustToken(t, basketAttrs()), setupOK))

	require.Equal(t, "This demo has no merchant setup! We hope you had fun.", speech(t, out))
	require.True(t, endsSession(out))
}

func TestPaySetup_SendsCharge(t *testing.T) {
	token := mustToken(t, basketAttrs())
	out := newTestEnv().skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionSetup, "200", "OK", token, setupOK))

	require.True(t, endsSession(out))
	require.Len(t, out.Response.Directives, 1)
	d := out.Response.Directives[0]
	require.Equal(t, connectionCharge, d.Name)
	require.Equal(t, token, d.Token)

	charge, ok := d.Payload.(chargePayRequest)
	require.True(t, ok)
	require.Equal(t, "ChargeAmazonPayRequest", charge.Type)
	require.Equal(t, "B01-123", charge.BillingAgreementID)
	require.Equal(t, "AuthorizeAndCapture", charge.PaymentAction)
	require.Equal(t, "basket-1", charge.AuthorizeAttributes.AuthorizationReferenceID)
	require.Equal(t, "11.00", charge.AuthorizeAttributes.AuthorizationAmount.Amount)
	require.Equal(t, "USD", charge.AuthorizeAttributes.AuthorizationAmount.CurrencyCode)

	require.Equal(t, "basket-1", out.SessionAttributes.BasketID)
	require.Len(t, out.SessionAttributes.Basket, 2)
}

func TestPaySetup_InvalidTokenApologizes(t *testing.T) {
	out := newTestEnv().skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionSetup, "200", "OK", "not-a-token", setupOK))

	require.Equal(t, apology, speech(t, out))
	require.Empty(t, out.Response.Directives)
}

func TestPaySetup_MissingAgreementApologizes(t *testing.T) {
	out := newTestEnv().skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionSetup, "200", "OK", mustToken(t, basketAttrs()), `{}`))
	require.Equal(t, apology, speech(t, out))
}

func TestPaySetup_MalformedStatus(t *testing.T) {
	out := newTestEnv().skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionSetup, "OK", "", mustToken(t, basketAttrs()), setupOK))
	require.Equal(t, apology, speech(t, out))
}

// ---------------------------------------------------------------------------
// Charge response
// ---------------------------------------------------------------------------

func TestPayCharge_FailureSubmitsNothing(t *testing.T) {
	e := newTestEnv()
	out := e.skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionCharge, "500", "Declined", mustToken(t, basketAttrs()), ""))

	require.Equal(t, "There was a problem with Amazon Pay Charge: Declined", speech(t, out))
	require.True(t, endsSession(out))
	require.Empty(t, e.orders.submitted)
	require.Empty(t, e.email.sent)
	require.Empty(t, e.ledger.claimed)
}

func TestPayCharge_SubmitsOrderAndEmails(t *testing.T) {
	e := newTestEnv()
	req := connectionResponse(connectionCharge, "200", "OK", mustToken(t, basketAttrs()), "")
	req.Context.System.User.AccessToken = "access-1"

	out := e.skill(t).Dispatcher().Dispatch(context.Background(), req)

	require.Equal(t, "Your order will be ready when you arrive.", speech(t, out))
	require.True(t, endsSession(out))

	require.Len(t, e.orders.submitted, 1)
	order := e.orders.submitted[0]
	require.InDelta(t, 11.00, order.Total, 1e-9)
	require.Equal(t, "user5097", order.Username)
	require.Len(t, order.Items, 2)

	require.Equal(t, []string{"access-1"}, e.identity.tokens)
	require.Equal(t, "42", e.ledger.marked["basket-1"])

	require.Len(t, e.email.sent, 1)
	require.Equal(t, "jane@example.com", e.email.sent[0].To)
	require.Equal(t, confirmationSubject, e.email.sent[0].Subject)

	require.NotNil(t, out.SessionAttributes.CognitoUser)
	require.Equal(t, "jane", out.SessionAttributes.CognitoUser.Username)
}

func TestPayCharge_DuplicateConfirmationSkipsSubmission(t *testing.T) {
	e := newTestEnv()
	d := e.skill(t).Dispatcher()
	token := mustToken(t, basketAttrs())

	first := d.Dispatch(context.Background(), connectionResponse(connectionCharge, "200", "OK", token, ""))
	second := d.Dispatch(context.Background(), connectionResponse(connectionCharge, "200", "OK", token, ""))

	require.Equal(t, speech(t, first), speech(t, second))
	require.Len(t, e.orders.submitted, 1)
	require.Len(t, e.email.sent, 1)
}

func TestPayCharge_RedeliveryAfterFailedSubmissionResubmits(t *testing.T) {
	e := newTestEnv()
	d := e.skill(t).Dispatcher()
	token := mustToken(t, basketAttrs())

	e.orders.err = errors.New("orders down")
	first := d.Dispatch(context.Background(), connectionResponse(connectionCharge, "200", "OK", token, ""))
	require.Equal(t, apology, speech(t, first))
	require.Empty(t, e.ledger.marked)

	e.orders.err = nil
	second := d.Dispatch(context.Background(), connectionResponse(connectionCharge, "200", "OK", token, ""))
	require.Equal(t, "Your order will be ready when you arrive.", speech(t, second))
	require.Len(t, e.orders.submitted, 2)
	require.Equal(t, "42", e.ledger.marked["basket-1"])
	require.Len(t, e.email.sent, 1)

	third := d.Dispatch(context.Background(), connectionResponse(connectionCharge, "200", "OK", token, ""))
	require.Equal(t, speech(t, second), speech(t, third))
	require.Len(t, e.orders.submitted, 2)
}

func TestPayCharge_SandboxIdentityWithoutEmail(t *testing.T) {
	e := newTestEnv()
	e.identity.err = errors.New("401")
	e.settings.SandboxCustomerEmail = ""

	out := e.skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionCharge, "200", "OK", mustToken(t, basketAttrs()), ""))

	require.Equal(t, "Your order will be ready when you arrive.", speech(t, out))
	require.Len(t, e.orders.submitted, 1)
	require.Equal(t, "user0", e.orders.submitted[0].Username)
	require.Equal(t, domain.BillingAddress{FirstName: "Testy", LastName: "McTest"}, e.orders.submitted[0].BillingAddress)
	require.Empty(t, e.email.sent)
}

func TestPayCharge_CachedCustomerSkipsLookup(t *testing.T) {
	e := newTestEnv()
	attrs := basketAttrs()
	attrs.CognitoUser = &domain.UserDetails{Username: "kim", Email: "kim@example.com"}

	e.skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionCharge, "200", "OK", mustToken(t, attrs), ""))

	require.Empty(t, e.identity.tokens)
	require.Equal(t, "kim", e.orders.submitted[0].Username)
	require.Equal(t, "kim@example.com", e.email.sent[0].To)
}

func TestPayCharge_OrderFailureApologizes(t *testing.T) {
	e := newTestEnv()
	e.orders.err = errors.New("orders down")

	out := e.skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionCharge, "200", "OK", mustToken(t, basketAttrs()), ""))

	require.Equal(t, apology, speech(t, out))
	require.Empty(t, e.email.sent)
	require.Empty(t, e.ledger.marked)
	require.True(t, e.ledger.claimed["basket-1"])
}

func TestPayCharge_LedgerMarkFailureStillConfirms(t *testing.T) {
	e := newTestEnv()
	e.ledger.markErr = errors.New("throttled")

	out := e.skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionCharge, "200", "OK", mustToken(t, basketAttrs()), ""))

	require.Equal(t, "Your order will be ready when you arrive.", speech(t, out))
	require.Len(t, e.email.sent, 1)
}

func TestPayCharge_LedgerClaimFailureApologizes(t *testing.T) {
	e := newTestEnv()
	e.ledger.claimErr = errors.New("throttled")

	out := e.skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionCharge, "200", "OK", mustToken(t, basketAttrs()), ""))

	require.Equal(t, apology, speech(t, out))
	require.Empty(t, e.orders.submitted)
}

func TestPayCharge_EmailFailureApologizes(t *testing.T) {
	e := newTestEnv()
	e.email.err = errors.New("pinpoint down")

	out := e.skill(t).Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionCharge, "200", "OK", mustToken(t, basketAttrs()), ""))

	require.Equal(t, apology, speech(t, out))
	require.Len(t, e.orders.submitted, 1)
}

func TestPayCharge_WithoutEmailSender(t *testing.T) {
	e := newTestEnv()
	s := e.skill(t)
	s.deps.Email = nil

	out := s.Dispatcher().Dispatch(context.Background(),
		connectionResponse(connectionCharge, "200", "OK", mustToken(t, basketAttrs()), ""))
	require.True(t, strings.HasPrefix(speech(t, out), "Your order will be ready"))
	require.Empty(t, e.email.sent)
}
