package views

import (
	"context"
	"errors"
	"strings"

	"github.com/a-h/templ"
	"github.com/dimitrije/passkeep/internal/models"
	"github.com/dimitrije/passkeep/internal/records"
)

type DashboardPage struct {
	Chrome  Chrome
	Manager *records.Manager
	Notice  string
}

// BannerMessage turns a manager error into text safe to show the owner.
func BannerMessage(err error) string {
	var ve *records.ValidationError
	if errors.As(err, &ve) {
		return fieldLabel(ve.Field) + " " + ve.Message + "."
	}

	var se *records.StoreError
	if errors.As(err, &se) {
		switch se.Op {
		case "list":
			return "Your passwords could not be loaded. The list below may be incomplete; try again shortly."
		case "insert":
			return "The password was not saved. Please try again."
		case "delete":
			if errors.Is(se.Err, records.ErrRecordNotFound) {
				return "That password no longer exists."
			}
			return "The password was not deleted. Please try again."
		}
	}

	if errors.Is(err, records.ErrRecordNotFound) {
		return "That password no longer exists."
	}
	return "Something went wrong. Please try again."
}

func fieldLabel(field string) string {
	switch field {
	case "url":
		return "Website URL"
	case "":
		return "Value"
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

func Dashboard(d DashboardPage) templ.Component {
	d.Chrome.Title = "Password Manager"
	m := d.Manager
	state := StateOf(m)

	return Layout(d.Chrome, component(func(ctx context.Context, p *page) {
		p.raw(`<h1>Password Manager Dashboard</h1>
<p class="muted">Manage your passwords securely in one place</p>
<div id="live" class="notice" role="status" hidden></div>`)

		if err := m.Banner(); err != nil {
			p.raw(`
<div class="banner" role="alert">`)
			p.text(BannerMessage(err))
			p.raw(`</div>`)
		}
		if d.Notice != "" {
			p.raw(`
<div class="notice" role="status">`)
			p.text(d.Notice)
			p.raw(`</div>`)
		}

		p.raw(`
<div class="toolbar">
    <form method="get" action="/app" role="search">
        <input type="search" name="q" placeholder="Search passwords..." value="`)
		p.text(m.SearchTerm())
		p.raw(`">
    </form>
    <a class="btn" href="`)
		p.href(state.WithAdding(!m.Adding()).URL())
		p.raw(`">`)
		if m.Adding() {
			p.raw(`Cancel`)
		} else {
			p.raw(`Add New Password`)
		}
		p.raw(`</a>
</div>`)

		if m.Adding() {
			addForm(p, d.Chrome.CSRF, m.Form(), state)
		}

		visible := m.Visible()
		if len(visible) > 0 {
			p.raw(`
<div class="grid">`)
			for _, r := range visible {
				recordCard(p, m, r, state)
			}
			p.raw(`
</div>`)
		}

		if empty, ok := m.Empty(); ok {
			p.raw(`
<div class="empty">
    <h3>`)
			p.text(empty.Title)
			p.raw(`</h3>
    <p class="muted">`)
			p.text(empty.Hint)
			p.raw(`</p>
</div>`)
		}

		p.raw(`
<script>` + dashboardScript + `</script>`)
	}))
}

func addForm(p *page, csrf string, form models.RecordFields, state AppState) {
	p.raw(`
<form class="card" method="post" action="/app/records">
    <h3>Add New Password</h3>`)
	p.csrf(csrf)
	p.raw(`
    <input type="hidden" name="q" value="`)
	p.text(state.Search)
	p.raw(`">
    <label for="title">Title</label>
    <input id="title" name="title" type="text" required maxlength="255" value="`)
	p.text(form.Title)
	p.raw(`">
    <label for="username">Username/Email</label>
    <input id="username" name="username" type="text" required maxlength="255" autocomplete="off" value="`)
	p.text(form.Username)
	p.raw(`">
    <label for="password">Password</label>
    <input id="password" name="password" type="password" required autocomplete="new-password">
    <label for="url">Website URL</label>
    <input id="url" name="url" type="url" maxlength="2048" value="`)
	p.text(form.URL)
	p.raw(`">
    <label for="notes">Notes</label>
    <textarea id="notes" name="notes" rows="3">`)
	p.text(form.Notes)
	p.raw(`</textarea>
    <p><button type="submit" class="btn">Save Password</button></p>
</form>`)
}

func recordCard(p *page, m *records.Manager, r models.Record, state AppState) {
	revealed := m.Revealed(r.ID)

	p.raw(`
    <div class="card" id="record-`)
	p.text(r.ID.String())
	p.raw(`">
        <div class="row"><h3>`)
	p.text(r.Title)
	p.raw(`</h3><a class="btn link" href="`)
	p.href(RecordDeleteURL(r.ID))
	p.raw(`" title="Delete">Delete</a></div>
        <div class="row"><span class="muted">Username</span><span>`)
	p.text(r.Username)
	p.raw(` <button type="button" class="btn link" data-copy="`)
	p.text(r.Username)
	p.raw(`">Copy</button></span></div>
        <div class="row"><span class="muted">Password</span><span><span class="secret">`)
	p.text(m.DisplayPassword(r))
	p.raw(`</span> <a class="btn link" href="`)
	p.href(state.ToggleReveal(r.ID).URL())
	p.raw(`">`)
	if revealed {
		p.raw(`Hide`)
	} else {
		p.raw(`Show`)
	}
	p.raw(`</a><button type="button" class="btn link" data-secret="`)
	p.href(RecordSecretURL(r.ID))
	p.raw(`">Copy</button></span></div>`)

	if r.URL != nil && *r.URL != "" {
		p.raw(`
        <div class="row"><span class="muted">Website</span><span><a href="`)
		p.href(*r.URL)
		p.raw(`" target="_blank" rel="noopener noreferrer">`)
		p.text(*r.URL)
		p.raw(`</a> <button type="button" class="btn link" data-copy="`)
		p.text(*r.URL)
		p.raw(`">Copy</button></span></div>`)
	}

	if r.Notes != nil && *r.Notes != "" {
		p.raw(`
        <div class="notes"><div class="muted">Notes</div>`)
		p.raw(RenderMarkdown(*r.Notes))
		p.raw(`</div>`)
	}

	p.raw(`
    </div>`)
}

type ConfirmDeletePage struct {
	Chrome Chrome
	Record models.Record
}

func ConfirmDelete(d ConfirmDeletePage) templ.Component {
	d.Chrome.Title = "Delete password"

	return Layout(d.Chrome, component(func(ctx context.Context, p *page) {
		p.raw(`<div class="card narrow">
    <h1>Delete password</h1>
    <p>Are you sure you want to delete <strong>`)
		p.text(d.Record.Title)
		p.raw(`</strong> (`)
		p.text(d.Record.Username)
		p.raw(`)? This cannot be undone.</p>
    <form method="post" action="`)
		p.href(RecordDeleteURL(d.Record.ID))
		p.raw(`">`)
		p.csrf(d.Chrome.CSRF)
		p.raw(`
        <input type="hidden" name="confirm" value="yes">
        <button type="submit" class="btn danger">Delete</button>
        <a class="btn secondary" href="/app">Cancel</a>
    </form>
</div>`)
	}))
}

const dashboardScript = `
(function () {
  function copy(text) {
    return navigator.clipboard.writeText(text).then(function () {
      alert('Copied to clipboard!');
    });
  }
  document.querySelectorAll('[data-copy]').forEach(function (btn) {
    btn.addEventListener('click', function () {
      copy(btn.dataset.copy).catch(function () { alert('Failed to copy'); });
    });
  });
  document.querySelectorAll('[data-secret]').forEach(function (btn) {
    btn.addEventListener('click', function () {
      fetch(btn.dataset.secret, { credentials: 'same-origin', headers: { 'Accept': 'application/json' } })
        .then(function (res) {
          if (!res.ok) { throw new Error(res.status); }
          return res.json();
        })
        .then(function (body) { return copy(body.password); })
        .catch(function () { alert('Failed to copy'); });
    });
  });
  if (window.EventSource) {
    var live = document.getElementById('live');
    var events = new EventSource('/app/events');
    events.onmessage = function (e) {
      var msg = JSON.parse(e.data);
      if (msg.type !== 'record_created' && msg.type !== 'record_deleted') { return; }
      live.textContent = 'Your passwords changed in another window. ';
      var reload = document.createElement('a');
      reload.href = window.location.href;
      reload.textContent = 'Reload';
      live.appendChild(reload);
      live.hidden = false;
    };
  }
})();
`
