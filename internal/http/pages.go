package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sujalbistaa/careerboard/internal/apperr"
	"github.com/sujalbistaa/careerboard/internal/career"
	"github.com/sujalbistaa/careerboard/internal/form"
	"github.com/sujalbistaa/careerboard/internal/imagehost"
	"github.com/sujalbistaa/careerboard/internal/listing"
	"github.com/sujalbistaa/careerboard/internal/models"
)

const recentActivity = 10

type careersPage struct {
	listing.View
	Error string
}

type loginPage struct {
	Email string
	Next  string
	Error string
}

const (
	msgPostingGone = "That posting no longer exists."
	msgLoginInput  = "Please enter a valid email and password"
)

type dashboardPage struct {
	listing.View
	Operator      string
	Notice        string
	Error         string
	ConfirmDelete bool
	Create        form.Draft
	Edit          *form.Draft
	Activity      []models.AuditEntry
	MaxImageMB    int64
}

// CareersPage is the public listing.
func (e *Env) CareersPage(c *gin.Context) {
	page := careersPage{}
	postings, err := e.Upstream.ListPostings(c.Request.Context())
	if err != nil {
		e.Logger.Warn("careers page could not load postings", zap.Error(err))
		page.Error = "Job postings are unavailable right now. Please try again later."
	}
	page.View = listing.Build(postings, c.Query("q"), c.Query("job"))
	c.HTML(http.StatusOK, "careers.html", page)
}

func (e *Env) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", loginPage{Next: safeNext(c.Query("next"))})
}

// LoginForm handles the login page's own form post.
func (e *Env) LoginForm(c *gin.Context) {
	var input LoginInput
	next := safeNext(c.PostForm("next"))
	if err := c.ShouldBind(&input); err != nil {
		e.Logger.Debug("login form rejected", zap.Error(err))
		c.HTML(http.StatusBadRequest, "login.html", loginPage{
			Email: input.Email,
			Next:  next,
			Error: msgLoginInput,
		})
		return
	}

	token, err := e.signIn(input.Email, input.Password)
	if err != nil {
		c.HTML(apperr.Status(err), "login.html", loginPage{
			Email: input.Email,
			Next:  next,
			Error: apperr.Message(err),
		})
		return
	}

	e.setSessionCookie(c, token)
	c.Redirect(http.StatusSeeOther, next)
}

func (e *Env) LogoutForm(c *gin.Context) {
	e.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, LoginPath)
}

// safeNext only allows redirects back into the dashboard.
func safeNext(next string) string {
	if next == adminPrefix || strings.HasPrefix(next, adminPrefix+"/") {
		return next
	}
	return DashboardPath
}

func (e *Env) Dashboard(c *gin.Context) {
	page := e.dashboard(c)
	page.Notice = c.Query("notice")
	if page.Error == "" {
		page.Error = c.Query("error")
	}
	if c.Query("confirm") == "delete" {
		e.confirmDelete(c, &page)
	}
	c.HTML(http.StatusOK, "dashboard.html", page)
}

// confirmDelete loads the posting named by job straight from the upstream.
// The confirmation is only offered for that exact posting; the listing's
// fallback selection never stands in for it.
func (e *Env) confirmDelete(c *gin.Context, page *dashboardPage) {
	job := c.Query("job")
	if job == "" {
		return
	}
	p, err := e.Upstream.GetPosting(c.Request.Context(), job)
	switch {
	case err == nil && p.ID == job:
	case err == nil, apperr.IsKind(err, apperr.KindUpstreamError) && apperr.Status(err) == http.StatusNotFound:
		page.Error = msgPostingGone
		return
	default:
		page.Error = "Failed to load posting: " + apperr.Message(err)
		return
	}

	page.Selected = p
	d := form.DraftFromPosting(*p)
	page.Edit = &d
	page.ConfirmDelete = true
}

// dashboard loads everything the dashboard shows. Load failures are shown
// inline rather than failing the page.
func (e *Env) dashboard(c *gin.Context) dashboardPage {
	ctx := c.Request.Context()
	page := dashboardPage{MaxImageMB: e.Relay.MaxImageBytes() >> 20}
	if s := currentSession(c, e.Codec); s != nil {
		page.Operator = s.Subject
	}

	postings, err := e.Upstream.ListPostings(ctx)
	if err != nil {
		page.Error = "Failed to load postings: " + apperr.Message(err)
	}
	page.View = listing.Build(postings, c.Query("q"), c.Query("job"))
	if page.Selected != nil {
		d := form.DraftFromPosting(*page.Selected)
		page.Edit = &d
	}

	activity, err := e.Audit.Recent(ctx, recentActivity)
	if err != nil {
		e.Logger.Warn("could not load recent activity", zap.Error(err))
	}
	page.Activity = activity
	return page
}

func (e *Env) DashboardCreate(c *gin.Context) {
	e.submitForm(c, form.ModeCreate, "")
}

func (e *Env) DashboardUpdate(c *gin.Context) {
	e.submitForm(c, form.ModeEdit, c.Param("id"))
}

func (e *Env) submitForm(c *gin.Context, mode form.Mode, id string) {
	draft, err := e.draftFromRequest(c)
	if err != nil {
		e.renderFormError(c, mode, id, draft, err)
		return
	}

	refreshed := false
	f := form.New(mode, id, e.Relay, func() { refreshed = true })
	f.MaxImageBytes = e.Relay.MaxImageBytes()
	f.Draft = draft

	action := models.ActionCreate
	if mode == form.ModeEdit {
		action = models.ActionUpdate
	}

	notice, err := f.Submit(c.Request.Context())
	postingID := id
	if f.Response != nil && mode == form.ModeCreate {
		postingID = createdID(f.Response)
	}
	if err != nil {
		if f.Response != nil {
			e.record(c, action, postingID, "dashboard", f.Response.Status)
		}
		e.renderFormError(c, mode, id, draft, err)
		return
	}

	e.record(c, action, postingID, "dashboard", f.Response.Status)
	if refreshed {
		e.Hub.NotifyCareerChanged(action, postingID)
	}
	redirectDashboard(c, postingID, notice)
}

func (e *Env) renderFormError(c *gin.Context, mode form.Mode, id string, draft form.Draft, err error) {
	if !isKnown(err) {
		e.Logger.Error("dashboard submit failed", zap.Stringer("mode", mode), zap.Error(err))
	}

	page := e.dashboard(c)
	if mode == form.ModeEdit {
		if page.Selected == nil || page.Selected.ID != id {
			page.Selected = findPosting(page.Postings, id)
		}
		page.Edit = &draft
	} else {
		page.Create = draft
	}
	page.Error = apperr.Message(err)
	c.HTML(apperr.Status(err), "dashboard.html", page)
}

func (e *Env) DashboardDelete(c *gin.Context) {
	id := c.Param("id")
	if c.PostForm("confirm") != "yes" {
		c.Redirect(http.StatusSeeOther, DashboardPath+"?job="+url.QueryEscape(id)+"&confirm=delete")
		return
	}

	resp, err := e.Relay.Delete(c.Request.Context(), id)
	if err != nil {
		redirectDashboardError(c, id, apperr.Message(err))
		return
	}
	e.record(c, models.ActionDelete, id, "dashboard", resp.Status)
	if !resp.OK() {
		msg := resp.Message()
		if msg == "" {
			msg = "Failed to delete career"
		}
		redirectDashboardError(c, id, msg)
		return
	}

	e.Hub.NotifyCareerChanged(models.ActionDelete, id)
	redirectDashboard(c, "", "Job deleted successfully")
}

// draftFromRequest reads the dashboard form. The draft is returned even on
// error so the operator's input can be shown again.
func (e *Env) draftFromRequest(c *gin.Context) (form.Draft, error) {
	if err := c.Request.ParseMultipartForm(8 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return form.Draft{}, apperr.UploadRejected("File too large")
		}
		return form.Draft{}, apperr.ValidationFailed("Invalid form submission")
	}

	d := form.Draft{
		Branch:        c.PostForm("branch"),
		Title:         c.PostForm("title"),
		Location:      c.PostForm("location"),
		Role:          c.PostForm("role"),
		Type:          c.PostForm("type"),
		Link:          c.PostForm("link"),
		Requirements:  c.PostForm("requirements"),
		ExistingImage: c.PostForm("existingImage"),
	}

	fh, err := c.FormFile("image")
	if err != nil || fh.Size == 0 {
		return d, nil
	}
	f, err := fh.Open()
	if err != nil {
		return d, apperr.ValidationFailed("Invalid file upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return d, apperr.ValidationFailed("Invalid file upload")
	}
	d.Image = &imagehost.Image{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}
	return d, nil
}

func findPosting(postings []career.Posting, id string) *career.Posting {
	for i := range postings {
		if postings[i].ID == id {
			return &postings[i]
		}
	}
	return nil
}

func isKnown(err error) bool {
	_, ok := apperr.As(err)
	return ok
}

func redirectDashboard(c *gin.Context, job, notice string) {
	q := url.Values{}
	if job != "" {
		q.Set("job", job)
	}
	if notice != "" {
		q.Set("notice", notice)
	}
	target := DashboardPath
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	c.Redirect(http.StatusSeeOther, target)
}

func redirectDashboardError(c *gin.Context, job, msg string) {
	q := url.Values{"error": {msg}}
	if job != "" {
		q.Set("job", job)
	}
	c.Redirect(http.StatusSeeOther, DashboardPath+"?"+q.Encode())
}
