package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"glenda/internal/models"
)

// DashboardSnapshot returns the engine overview.
func (s *Server) DashboardSnapshot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.dashboard.Snapshot()
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, snap)
	}
}

// DashboardApply validates and stores parameter updates.
func (s *Server) DashboardApply() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params map[string]string
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if err := s.dashboard.ApplyParams(params); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// CreditsCheck runs an on-demand credit verification.
func (s *Server) CreditsCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, s.dashboard.CheckCredits())
	}
}

// AccountSwitch flips between the primary and backup WhatsApp lines.
func (s *Server) AccountSwitch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := s.dashboard.SwitchAccount()
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"active_account": account})
	}
}

func (s *Server) loadConversation(w http.ResponseWriter, r *http.Request) *models.Conversation {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid conversation id")
		return nil
	}
	conv, err := s.conversations.Load(uint(id))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return nil
	}
	return conv
}

// ConversationRetry reopens a failed or timed-out conversation.
func (s *Server) ConversationRetry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv := s.loadConversation(w, r)
		if conv == nil {
			return
		}
		if err := s.conversations.Retry(conv); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{"id": conv.ID, "state": conv.State})
	}
}

// ConversationForceResolve closes an open conversation by hand.
func (s *Server) ConversationForceResolve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conv := s.loadConversation(w, r)
		if conv == nil {
			return
		}
		var body struct {
			Summary string `json:"summary"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Summary == "" {
			s.respondError(w, http.StatusBadRequest, "summary is required")
			return
		}
		if err := s.conversations.ForceResolve(conv, body.Summary); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{"id": conv.ID, "state": conv.State})
	}
}

// BounceResolveViaEmail closes a bounce conversation with an address
// confirmed over email instead of WhatsApp.
func (s *Server) BounceResolveViaEmail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid bounce log id")
			return
		}
		var body struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
			s.respondError(w, http.StatusBadRequest, "email is required")
			return
		}
		if err := s.conversations.ResolveViaEmail(uint(id), body.Email); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
	}
}

// HRStartRequest opens a data collection request for an employee.
func (s *Server) HRStartRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			EmployeeID uint `json:"employee_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.EmployeeID == 0 {
			s.respondError(w, http.StatusBadRequest, "employee_id is required")
			return
		}
		req, err := s.hr.StartRequest(body.EmployeeID)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusCreated, map[string]any{
			"id":       req.ID,
			"state":    req.State,
			"progress": req.Progress(),
		})
	}
}

// HRCancelRequest aborts a data collection request.
func (s *Server) HRCancelRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request id")
			return
		}
		if err := s.hr.Cancel(uint(id)); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	}
}

// ValidatePhone asks the gateway whether a number has WhatsApp.
func (s *Server) ValidatePhone() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := r.URL.Query().Get("phone")
		if phone == "" {
			s.respondError(w, http.StatusBadRequest, "phone is required")
			return
		}
		valid, err := s.gateway.ValidatePhone(phone)
		if err != nil {
			s.respondError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{"phone": phone, "valid": valid})
	}
}
