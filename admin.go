package petalpress

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
)

func requireAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	return nil
}

// handleAdmin serves the owner dashboard, or the login form when the
// session is not authenticated.
func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.loginForm(CsrfToken(c), ""))
	}
	posts, err := a.Workflow.Show(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.dashboard(c, posts))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Allow(ip) {
		a.log.Warn().Str("ip", ip).Msg("login rate limited")
		return RenderStatus(c, http.StatusTooManyRequests,
			a.loginForm(CsrfToken(c), "Too many attempts. Please wait a minute."))
	}

	password := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(password), []byte(a.Config.AdminPassword)) != 1 {
		a.log.Warn().Str("ip", ip).Msg("failed login attempt")
		return RenderStatus(c, http.StatusUnauthorized,
			a.loginForm(CsrfToken(c), "Incorrect password."))
	}

	if err := setAdminSession(c); err != nil {
		return err
	}
	a.log.Info().Str("ip", ip).Msg("owner logged in")

	// Successful authentication opens the management view directly.
	posts, err := a.Workflow.Show(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.dashboard(c, posts))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

// handleAdminPost loads a post into the edit form.
func (a *App) handleAdminPost(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	if _, err := a.Workflow.StartEdit(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminSave(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	if c.FormValue("cancel") != "" {
		a.Workflow.Cancel()
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	fields := PostFields{
		Title:     c.FormValue("title"),
		Body:      c.FormValue("body"),
		Image:     c.FormValue("image"),
		Published: c.FormValue("published") == "on",
	}
	if _, err := a.Workflow.Submit(c.Request().Context(), fields); err != nil {
		if errors.Is(err, ErrValidation) {
			posts, showErr := a.Workflow.Show(c.Request().Context())
			if showErr != nil {
				return showErr
			}
			return RenderStatus(c, http.StatusBadRequest, a.dashboard(c, posts))
		}
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminPublish(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	publish := c.FormValue("publish") == "true"
	if err := a.Workflow.TogglePublish(c.Request().Context(), c.Param("id"), publish); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminDelete(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if c.FormValue("confirm") == "true" {
		ctx = WithConfirmation(ctx)
	}
	err := a.Workflow.Delete(ctx, c.Param("id"))
	switch {
	case errors.Is(err, ErrNotConfirmed):
		return echo.NewHTTPError(http.StatusBadRequest, "deletion requires confirmation")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound)
	case err != nil:
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleAdminImages(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	names := a.Images.Names()
	return Render(c, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, `<ul class="image-list">`)
		for _, name := range names {
			fmt.Fprintf(w, `<li>%s</li>`, html.EscapeString(name))
		}
		_, err := io.WriteString(w, `</ul>`)
		return err
	}))
}

// handleImageStage accepts an upload, normalizes it, and returns the
// processed JPEG as a download. The owner places the file among the site
// assets themselves; nothing is written server-side.
func (a *App) handleImageStage(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}
	if fh.Size > maxStageSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image exceeds the 5MB limit")
	}
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	staged, data, err := a.Images.StageImage(src, fh.Filename)
	if err != nil {
		a.log.Warn().Err(err).Str("file", fh.Filename).Msg("image staging failed")
		return echo.NewHTTPError(http.StatusBadRequest, "could not process image")
	}
	a.log.Info().
		Str("file", staged.Filename).
		Int("width", staged.Width).
		Int("height", staged.Height).
		Int("size", staged.Size).
		Msg("image staged")

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename=%q`, staged.Filename))
	return c.Blob(http.StatusOK, "image/jpeg", data)
}

func (a *App) handleAdminInquiries(c echo.Context) error {
	if err := requireAdmin(c); err != nil {
		return err
	}
	inquiries, err := a.Inquiries.List()
	if err != nil {
		return err
	}
	return Render(c, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, `<table class="inquiry-table"><tr><th>Received</th><th>Name</th><th>Email</th><th>Type</th><th>Message</th></tr>`)
		for _, inq := range inquiries {
			fmt.Fprintf(w, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
				inq.ReceivedAt.Format(time.RFC822),
				html.EscapeString(inq.Name),
				html.EscapeString(inq.Email),
				html.EscapeString(inq.InquiryType),
				html.EscapeString(inq.Message))
		}
		_, err := io.WriteString(w, `</table>`)
		return err
	}))
}

func (a *App) loginForm(csrf, errMsg string) templ.Component {
	return a.pageShell("Login", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		io.WriteString(w, `<form class="admin-login" method="post" action="/admin/login/">`)
		fmt.Fprintf(w, `<input type="hidden" name="_csrf" value="%s">`, html.EscapeString(csrf))
		if errMsg != "" {
			fmt.Fprintf(w, `<p class="form-error">%s</p>`, html.EscapeString(errMsg))
		}
		io.WriteString(w, `<label>Password <input type="password" name="password" autofocus></label>`)
		io.WriteString(w, `<button type="submit">Log in</button>`)
		_, err := io.WriteString(w, `</form>`)
		return err
	}))
}

func (a *App) dashboard(c echo.Context, posts []Post) templ.Component {
	csrf := CsrfToken(c)
	state, editingID := a.Workflow.State()
	draft := a.Workflow.Draft()
	var flash *Notification
	if f, ok := a.notifier.(interface{ Flash() *Notification }); ok {
		flash = f.Flash()
	}

	return a.pageShell("Manage Posts", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if flash != nil {
			fmt.Fprintf(w, `<p class="flash flash-%s">%s</p>`,
				html.EscapeString(string(flash.Severity)), html.EscapeString(flash.Message))
		}

		io.WriteString(w, `<section class="post-form">`)
		if state == StateEditing {
			fmt.Fprintf(w, `<h2>Editing post %s</h2>`, html.EscapeString(editingID))
		} else {
			io.WriteString(w, `<h2>New post</h2>`)
		}
		io.WriteString(w, `<form method="post" action="/admin/save/">`)
		fmt.Fprintf(w, `<input type="hidden" name="_csrf" value="%s">`, html.EscapeString(csrf))
		fmt.Fprintf(w, `<label>Title <input type="text" name="title" value="%s"></label>`, html.EscapeString(draft.Title))
		fmt.Fprintf(w, `<label>Body <textarea name="body">%s</textarea></label>`, html.EscapeString(draft.Body))
		io.WriteString(w, `<label>Image <select name="image"><option value=""></option>`)
		for _, name := range a.Images.Names() {
			selected := ""
			if name == draft.Image {
				selected = " selected"
			}
			fmt.Fprintf(w, `<option value="%s"%s>%s</option>`, html.EscapeString(name), selected, html.EscapeString(name))
		}
		io.WriteString(w, `</select></label>`)
		checked := ""
		if draft.Published {
			checked = " checked"
		}
		fmt.Fprintf(w, `<label>Published <input type="checkbox" name="published"%s></label>`, checked)
		io.WriteString(w, `<button type="submit">Save</button>`)
		io.WriteString(w, `<button type="submit" name="cancel" value="1">Cancel</button>`)
		io.WriteString(w, `</form></section>`)

		io.WriteString(w, `<section class="post-list"><h2>Posts</h2><table>`)
		io.WriteString(w, `<tr><th>Title</th><th>Created</th><th>Status</th><th></th></tr>`)
		for _, p := range posts {
			status := "Draft"
			publish := "true"
			if p.Published {
				status = "Published"
				publish = "false"
			}
			fmt.Fprintf(w, `<tr><td><a href="/admin/post/%s/">%s</a></td><td>%s</td><td>%s</td><td>`,
				html.EscapeString(p.ID), html.EscapeString(p.Title), p.CreatedAt.Format("2006-01-02"), status)
			fmt.Fprintf(w, `<form method="post" action="/admin/publish/%s/"><input type="hidden" name="_csrf" value="%s"><input type="hidden" name="publish" value="%s"><button type="submit">Toggle</button></form>`,
				html.EscapeString(p.ID), html.EscapeString(csrf), publish)
			fmt.Fprintf(w, `<button class="post-delete" data-id="%s" data-csrf="%s">Delete</button>`,
				html.EscapeString(p.ID), html.EscapeString(csrf))
			io.WriteString(w, `</td></tr>`)
		}
		_, err := io.WriteString(w, `</table></section>`)
		return err
	}))
}
