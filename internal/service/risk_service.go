package service

import (
	"context"

	"github.com/Today-is-Life/sso-server-os-sub000/internal/domain"
	"github.com/Today-is-Life/sso-server-os-sub000/internal/risk"
)

// RiskService exposes on-demand zero-trust evaluations. Login-time
// evaluations run inside AuthService; this surface lets resource
// servers ask "would this identity be allowed to do X right now".
type RiskService struct {
	engine *risk.Engine
}

func NewRiskService(engine *risk.Engine) *RiskService {
	return &RiskService{engine: engine}
}

type EvaluateRequest struct {
	Action      string `json:"action" validate:"required,oneof=read write update delete admin system"`
	Sensitivity string `json:"sensitivity" validate:"required,oneof=public internal confidential secret top_secret"`
	MFAVerified bool   `json:"mfa_verified"`
}

func (s *RiskService) Evaluate(ctx context.Context, identity *domain.Identity, req EvaluateRequest, rc RequestContext) (*risk.Evaluation, error) {
	signals := rc.Signals()
	signals.Action = domain.Action(req.Action)
	signals.Sensitivity = domain.Sensitivity(req.Sensitivity)
	signals.MFAVerified = req.MFAVerified

	return s.engine.Evaluate(ctx, identity, signals)
}
