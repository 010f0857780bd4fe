package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"cstore-agent/internal/domain"
)

// turnDispatcher is the conversation core consumed by the skill handler.
type turnDispatcher interface {
	Dispatch(ctx context.Context, req domain.RequestEnvelope) domain.ResponseEnvelope
}

// SkillHandler is the Lambda entry point of the voice skill.
type SkillHandler struct {
	dispatcher turnDispatcher
}

func NewSkillHandler(d turnDispatcher) (*SkillHandler, error) {
	if d == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	return &SkillHandler{dispatcher: d}, nil
}

// Handle runs one conversation turn. Failures are answered in speech by the
// dispatcher, so the Lambda invocation itself always succeeds.
func (h *SkillHandler) Handle(ctx context.Context, req domain.RequestEnvelope) (domain.ResponseEnvelope, error) {
	log := slog.With(
		"awsRequestId", awsRequestID(ctx),
		"requestId", req.Request.RequestID,
		"sessionId", req.Session.SessionID,
	)
	log.Info("turn received",
		"type", req.Request.Type,
		"intent", req.Request.Intent.Name,
		"dialogState", req.Request.DialogState,
		"newSession", req.Session.New,
	)

	resp := h.dispatcher.Dispatch(ctx, req)

	log.Info("turn answered",
		"directives", len(resp.Response.Directives),
		"endSession", resp.Response.ShouldEndSession != nil && *resp.Response.ShouldEndSession,
	)
	return resp, nil
}

func awsRequestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		return lc.AwsRequestID
	}
	return ""
}
