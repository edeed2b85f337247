package api

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/signalrelay/internal/common"
	"github.com/dmitrijs2005/signalrelay/internal/server/models"
	"github.com/dmitrijs2005/signalrelay/internal/server/services"
)

type webhookConfigRequest struct {
	URL      string `json:"url"`
	Token    string `json:"token"`
	IsActive *bool  `json:"isActive"`
}

type testWebhookRequest struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

type tradingSignalRequest struct {
	Symbol string  `json:"symbol"`
	Action string  `json:"action"`
	Price  float64 `json:"price"`
}

func (s *HTTPServer) handleGetWebhookConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.svc.Webhooks.GetConfig(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "", fields{"config": cfg})
}

func (s *HTTPServer) handleSetWebhookConfig(w http.ResponseWriter, r *http.Request) {
	var req webhookConfigRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.URL == "" {
		s.fail(w, r, common.ErrMissingParameter)
		return
	}

	cfg := models.WebhookConfig{URL: req.URL, Token: req.Token, IsActive: true}
	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}

	if err := s.svc.Webhooks.SetConfig(r.Context(), userIDFrom(r.Context()), cfg); err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "Webhook配置更新成功", nil)
}

// handleTestWebhook reports probe failures with their cause, since the
// caller is debugging the receiver.
func (s *HTTPServer) handleTestWebhook(w http.ResponseWriter, r *http.Request) {
	var req testWebhookRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "缺少URL参数")
		return
	}

	res, err := s.svc.Dispatch.TestWebhook(r.Context(), req.URL, req.Token)
	if err != nil {
		var derr *services.DispatchError
		switch {
		case errors.Is(err, common.ErrInvalidURL):
			writeError(w, http.StatusBadRequest, "URL格式无效")
		case errors.Is(err, common.ErrTransportTimeout):
			writeError(w, http.StatusGatewayTimeout, "请求超时，目标服务器响应太慢")
		case errors.As(err, &derr) && derr.Unreachable:
			writeError(w, http.StatusBadGateway, "无法连接到目标URL，请检查URL是否正确")
		case errors.As(err, &derr):
			writeError(w, http.StatusBadGateway, "测试失败: "+derr.Err.Error())
		default:
			s.fail(w, r, err)
		}
		return
	}

	writeSuccess(w, "Webhook测试完成", fields{"result": res})
}

func (s *HTTPServer) handleTradingSignal(w http.ResponseWriter, r *http.Request) {
	var req tradingSignalRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	env, err := s.svc.Dispatch.DispatchSignal(r.Context(), userIDFrom(r.Context()), req.Symbol, req.Action, req.Price)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "交易信号发送成功", fields{"data": env})
}
