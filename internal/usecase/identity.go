package usecase

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"cstore-agent/internal/domain"
)

// customer returns the linked account of the requesting user. The account is
// fetched once per session; when the lookup fails a sandbox identity stands in
// so the demo works without account linking.
func (s *Skill) customer(ctx context.Context, req domain.RequestEnvelope, attrs *domain.SessionAttributes) domain.UserDetails {
	if attrs.CognitoUser != nil {
		return *attrs.CognitoUser
	}

	user, err := s.deps.Identity.UserInfo(ctx, req.Context.System.User.AccessToken)
	if err != nil {
		user = s.sandboxUser()
		slog.Info("using sandbox identity", "username", user.Username, "err", err)
	} else {
		slog.Info("resolved linked account", "username", user.Username)
	}
	attrs.CognitoUser = &user
	return user
}

func (s *Skill) sandboxUser() domain.UserDetails {
	return domain.UserDetails{
		Username:         "daemon",
		ProfileUserID:    "0",
		ProfileFirstName: "Testy",
		ProfileLastName:  "McTest",
		Email:            s.settings.SandboxCustomerEmail,
	}
}

// orderIdentity derives the order username and billing name. Accounts backed
// by a numeric store profile are ordered as "user<id>".
func orderIdentity(u domain.UserDetails) (username, first, last string) {
	if isNumeric(u.ProfileUserID) {
		return "user" + u.ProfileUserID, u.ProfileFirstName, u.ProfileLastName
	}
	return u.Username, u.Username, ""
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}
