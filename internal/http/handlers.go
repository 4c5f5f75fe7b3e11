package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sujalbistaa/careerboard/internal/apperr"
	"github.com/sujalbistaa/careerboard/internal/audit"
	"github.com/sujalbistaa/careerboard/internal/auth"
	"github.com/sujalbistaa/careerboard/internal/career"
	"github.com/sujalbistaa/careerboard/internal/config"
	"github.com/sujalbistaa/careerboard/internal/models"
	"github.com/sujalbistaa/careerboard/internal/relay"
	"github.com/sujalbistaa/careerboard/internal/upstream"
	"github.com/sujalbistaa/careerboard/internal/ws"
)

// --- Structs for request binding ---
type LoginInput struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

// --- Handlers ---
type Env struct {
	Config      *config.Config
	Codec       *auth.Codec
	Credentials auth.Credentials
	Upstream    *upstream.Client
	Relay       *relay.Relay
	Audit       *audit.Recorder
	Hub         *ws.Hub
	Logger      *zap.Logger
}

// signIn checks the credentials and issues a session token.
func (e *Env) signIn(email, password string) (string, error) {
	if !e.Credentials.Match(email, password) {
		e.Logger.Info("login rejected", zap.String("email", email))
		return "", apperr.AuthInvalid("Invalid credentials")
	}
	token, _, err := e.Codec.Issue(email, auth.RoleAdmin)
	if err != nil {
		e.Logger.Error("cannot issue session", zap.Error(err))
		return "", apperr.Misconfigured("Login error")
	}
	return token, nil
}

func (e *Env) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(auth.SessionTTL/time.Second), "/", "", e.Config.Production(), true)
}

func (e *Env) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", e.Config.Production(), true)
}

func (e *Env) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid input"})
		return
	}

	token, err := e.signIn(input.Email, input.Password)
	if err != nil {
		writeError(c, err, "Login error")
		return
	}

	e.setSessionCookie(c, token)
	e.Logger.Info("operator signed in", zap.String("email", input.Email))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (e *Env) Logout(c *gin.Context) {
	e.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (e *Env) ListCareers(c *gin.Context) {
	resp, err := e.Upstream.Do(c.Request.Context(), upstream.Request{
		Method: http.MethodGet,
		Path:   upstream.CareerPath(""),
	})
	if err != nil {
		writeError(c, err, "Failed to fetch careers")
		return
	}
	relayResponse(c, resp)
}

func (e *Env) GetCareer(c *gin.Context) {
	resp, err := e.Upstream.Do(c.Request.Context(), upstream.Request{
		Method: http.MethodGet,
		Path:   upstream.CareerPath(c.Param("id")),
	})
	if err != nil {
		writeError(c, err, "Failed to fetch career")
		return
	}
	relayResponse(c, resp)
}

func (e *Env) CreateCareer(c *gin.Context) {
	in, err := e.Relay.ParseRequest(c.Request)
	if err != nil {
		writeError(c, err, "Failed to create career")
		return
	}

	resp, err := e.Relay.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, err, "Failed to create career")
		return
	}
	e.afterWrite(c, models.ActionCreate, createdID(resp), "api", resp.Status)
	relayResponse(c, resp)
}

func (e *Env) UpdateCareer(c *gin.Context) {
	id := c.Param("id")
	in, err := e.Relay.ParseRequest(c.Request)
	if err != nil {
		writeError(c, err, "Internal server error")
		return
	}

	resp, err := e.Relay.Update(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, err, "Internal server error")
		return
	}
	e.afterWrite(c, models.ActionUpdate, id, "api", resp.Status)
	relayResponse(c, resp)
}

func (e *Env) DeleteCareer(c *gin.Context) {
	id := c.Param("id")
	resp, err := e.Relay.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to delete career")
		return
	}
	e.afterWrite(c, models.ActionDelete, id, "api", resp.Status)
	relayResponse(c, resp)
}

func (e *Env) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dashboards": e.Hub.Connected()})
}

// afterWrite audits a relayed write and, when it succeeded, tells open
// dashboards to reload.
func (e *Env) afterWrite(c *gin.Context, action, id, source string, status int) {
	e.record(c, action, id, source, status)
	if status >= 200 && status < 300 {
		e.Hub.NotifyCareerChanged(action, id)
	}
}

// record writes an audit entry. The operator is the session subject when a
// valid cookie came with the request.
func (e *Env) record(c *gin.Context, action, id, source string, status int) {
	entry := models.AuditEntry{
		Action:    action,
		PostingID: id,
		Operator:  audit.Anonymous,
		Status:    status,
		Source:    source,
	}
	if s := currentSession(c, e.Codec); s != nil {
		entry.Operator = s.Subject
	}

	// The audit write must not be cut short by the caller going away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
	defer cancel()
	_ = e.Audit.Record(ctx, entry)
}

// relayResponse passes the upstream status and JSON body through unchanged.
func relayResponse(c *gin.Context, resp *upstream.Response) {
	if resp.Status == http.StatusNoContent || resp.Status == http.StatusNotModified {
		c.Status(resp.Status)
		return
	}
	c.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
}

// writeError renders err as {"message": ...}. Errors without a kind get
// fallback so internals never reach the caller.
func writeError(c *gin.Context, err error, fallback string) {
	e, ok := apperr.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"message": fallback})
		return
	}

	switch e.Kind {
	case apperr.KindUploadFailed:
		body := gin.H{"message": e.Message, "detail": e.Detail, "error": "Unknown image host error"}
		if d, ok := e.Detail.(map[string]any); ok {
			if m, ok := d["message"].(string); ok && m != "" {
				body["error"] = m
			}
		}
		c.JSON(apperr.Status(err), body)
	case apperr.KindNetworkFailure, apperr.KindInternal:
		c.JSON(apperr.Status(err), gin.H{"message": fallback})
	default:
		c.JSON(apperr.Status(err), gin.H{"message": e.Message})
	}
}

// createdID pulls the new posting's id out of a create reply, if present.
func createdID(resp *upstream.Response) string {
	if !resp.OK() {
		return ""
	}
	p, err := career.DecodePosting(resp.Body)
	if err != nil {
		return ""
	}
	return p.ID
}
