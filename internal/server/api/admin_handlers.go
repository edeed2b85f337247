package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type addLogRequest struct {
	UserID  string `json:"userId"`
	Action  string `json:"action"`
	Details string `json:"details"`
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Accounts.ListUsers(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "", fields{"users": users})
}

func (s *HTTPServer) handleToggleUser(w http.ResponseWriter, r *http.Request) {
	active, err := s.svc.Accounts.ToggleUserStatus(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	label := "启用"
	if !active {
		label = "禁用"
	}
	writeSuccess(w, "用户"+label+"成功", fields{"active": active})
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Accounts.DeleteUser(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "用户删除成功", nil)
}

func (s *HTTPServer) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Exporter.Export(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "日志导出成功", fields{"export": res})
}

// handleGetLogs serves the caller's own logs by default, ?userId= for
// another user and ?all=true for everything. The latter two need admin.
func (s *HTTPServer) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target := q.Get("userId")
	if q.Get("all") == "true" {
		target = "*"
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	logs, err := s.svc.Audit.LogsFor(r.Context(), userIDFrom(r.Context()), target, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "", fields{"logs": logs})
}

func (s *HTTPServer) handleAddLog(w http.ResponseWriter, r *http.Request) {
	var req addLogRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	actor := userIDFrom(r.Context())
	if req.UserID == "" {
		req.UserID = actor
	}

	e, err := s.svc.Audit.AppendCustom(r.Context(), actor, req.UserID, req.Action, req.Details)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeSuccess(w, "日志记录成功", fields{"data": e})
}
