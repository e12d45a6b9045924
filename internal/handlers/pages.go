package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/dimitrije/passkeep/internal/logger"
	"github.com/dimitrije/passkeep/internal/middleware"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/records"
	"github.com/dimitrije/passkeep/internal/views"
	"github.com/dimitrije/passkeep/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

// notices are checked in order; the first flag set wins.
var notices = []struct {
	key  string
	text string
}{
	{"saved", "Password saved."},
	{"deleted", "Password deleted."},
}

// PageHandler serves the credential manager pages. Each request builds its
// own records.Manager from the store; nothing is shared between requests.
type PageHandler struct {
	recordService RecordServiceInterface
	hub           HubInterface
	sessions      SessionInterface
}

func NewPageHandler(recordService RecordServiceInterface, hub HubInterface, sessions SessionInterface) *PageHandler {
	return &PageHandler{
		recordService: recordService,
		hub:           hub,
		sessions:      sessions,
	}
}

func (h *PageHandler) Landing(c *drift.Context) {
	if user, err := h.sessions.Resolve(c.Request.Context(), c.Response, c.Request); err == nil && user != nil {
		middleware.Redirect(c, "/app", http.StatusFound)
		return
	}
	renderPage(c, http.StatusOK, views.Landing())
}

// Dashboard lists the owner's records. A failed list still renders the page,
// with an empty list and a banner.
func (h *PageHandler) Dashboard(c *drift.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		middleware.Redirect(c, "/login", http.StatusFound)
		return
	}

	m := h.load(c, user)
	views.ParseAppState(c.Request.URL.Query()).Apply(m)

	notice := ""
	for _, n := range notices {
		if c.QueryParam(n.key) == "1" {
			notice = n.text
			break
		}
	}

	status := http.StatusOK
	if m.Banner() != nil {
		status = http.StatusBadGateway
	}
	h.renderDashboard(c, status, user, m, notice)
}

func (h *PageHandler) AddRecord(c *drift.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		middleware.Redirect(c, "/login", http.StatusFound)
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		c.BadRequest("invalid form body")
		return
	}
	form := c.Request.PostForm
	state := views.AppState{Search: form.Get("q")}

	m := h.load(c, user)
	state.Apply(m)
	m.ToggleAdding()
	m.SetForm(models.RecordFields{
		Title:    form.Get("title"),
		Username: form.Get("username"),
		Password: form.Get("password"),
		URL:      form.Get("url"),
		Notes:    form.Get("notes"),
	})

	rec, err := m.Submit(c.Request.Context())
	if err != nil {
		var ve *records.ValidationError
		status := http.StatusBadGateway
		if errors.As(err, &ve) {
			status = http.StatusUnprocessableEntity
		} else {
			logger.Log.Error("failed to insert record", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
		h.renderDashboard(c, status, user, m, "")
		return
	}

	h.hub.BroadcastRecordCreated(user.ID, rec.ID, rec.Title, rec.CreatedAt)
	redirectWithNotice(c, views.StateOf(m), "saved")
}

// ConfirmDelete asks before anything is deleted.
func (h *PageHandler) ConfirmDelete(c *drift.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		middleware.Redirect(c, "/login", http.StatusFound)
		return
	}

	rec, ok := h.ownedRecord(c, user)
	if !ok {
		return
	}

	renderPage(c, http.StatusOK, views.ConfirmDelete(views.ConfirmDeletePage{
		Chrome: chrome(c, user),
		Record: *rec,
	}))
}

func (h *PageHandler) DeleteRecord(c *drift.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		middleware.Redirect(c, "/login", http.StatusFound)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.renderError(c, http.StatusNotFound, "Password not found", "That password no longer exists.")
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		c.BadRequest("invalid form body")
		return
	}
	confirmed := c.Request.PostForm.Get("confirm") == "yes"

	m := h.load(c, user)
	if m.Banner() != nil {
		h.renderDashboard(c, http.StatusBadGateway, user, m, "")
		return
	}

	err = m.Delete(c.Request.Context(), id, confirmed)
	switch {
	case err == nil:
		h.hub.BroadcastRecordDeleted(user.ID, id)
		redirectWithNotice(c, views.AppState{}, "deleted")
	case errors.Is(err, records.ErrNotConfirmed):
		middleware.Redirect(c, views.RecordDeleteURL(id), http.StatusSeeOther)
	case errors.Is(err, records.ErrRecordNotFound):
		m.SetBanner(err)
		h.renderDashboard(c, http.StatusNotFound, user, m, "")
	default:
		logger.Log.Error("failed to delete record",
			zap.String("user_id", user.ID.String()),
			zap.String("record_id", id.String()),
			zap.Error(err))
		h.renderDashboard(c, http.StatusBadGateway, user, m, "")
	}
}

// Secret returns one password for the copy button. The record goes through the
// owner's manager, so a row with a foreign owner is never copied. The response
// must not be cached.
func (h *PageHandler) Secret(c *drift.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		c.Unauthorized("not authenticated")
		return
	}

	c.Response.Header().Set("Cache-Control", "no-store")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.NotFound("record not found")
		return
	}

	rec, err := h.recordService.Get(c.Request.Context(), user.ID, id)
	if errors.Is(err, records.ErrRecordNotFound) {
		c.NotFound("record not found")
		return
	}
	if err != nil {
		logger.Log.Error("failed to get record", zap.String("record_id", id.String()), zap.Error(err))
		c.BadGateway("failed to load record")
		return
	}

	m := records.NewManager(h.recordService, user.ID)
	m.Seed([]models.Record{*rec})
	password, err := m.Copy(id, records.FieldPassword)
	if err != nil {
		c.NotFound("record not found")
		return
	}

	_ = c.JSON(http.StatusOK, dto.SecretResponse{Password: password})
}

func (h *PageHandler) load(c *drift.Context, user *models.User) *records.Manager {
	m := records.NewManager(h.recordService, user.ID)
	if err := m.Load(c.Request.Context()); err != nil {
		logger.Log.Error("failed to list records", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	return m
}

func (h *PageHandler) ownedRecord(c *drift.Context, user *models.User) (*models.Record, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.renderError(c, http.StatusNotFound, "Password not found", "That password no longer exists.")
		return nil, false
	}

	rec, err := h.recordService.Get(c.Request.Context(), user.ID, id)
	if errors.Is(err, records.ErrRecordNotFound) {
		h.renderError(c, http.StatusNotFound, "Password not found", "That password no longer exists.")
		return nil, false
	}
	if err != nil {
		logger.Log.Error("failed to get record", zap.String("record_id", id.String()), zap.Error(err))
		h.renderError(c, http.StatusBadGateway, "Something went wrong", "The password could not be loaded. Please try again.")
		return nil, false
	}
	return rec, true
}

func (h *PageHandler) renderDashboard(c *drift.Context, status int, user *models.User, m *records.Manager, notice string) {
	renderPage(c, status, views.Dashboard(views.DashboardPage{
		Chrome:  chrome(c, user),
		Manager: m,
		Notice:  notice,
	}))
}

func (h *PageHandler) renderError(c *drift.Context, status int, title, message string) {
	renderPage(c, status, views.ErrorPage(title, message))
}

func chrome(c *drift.Context, user *models.User) views.Chrome {
	return views.Chrome{User: user, CSRF: middleware.CSRFToken(c)}
}

// renderPage writes a rendered component. Pages can hold revealed secrets,
// so none of them may be cached.
func renderPage(c *drift.Context, status int, component templ.Component) {
	html, err := views.Render(c.Request.Context(), component)
	if err != nil {
		logger.Log.Error("failed to render page", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.InternalServerError("failed to render page")
		return
	}
	c.Response.Header().Set("Cache-Control", "no-store")
	_ = c.HTML(status, html)
}

func redirectWithNotice(c *drift.Context, state views.AppState, notice string) {
	target := state.URL()
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	middleware.Redirect(c, target+sep+notice+"=1", http.StatusSeeOther)
}
