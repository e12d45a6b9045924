package views

import (
	"context"

	"github.com/a-h/templ"
	"github.com/dimitrije/passkeep/internal/models"
)

// Chrome is what every page shares: its title and, once signed in, the
// user and the CSRF token for the logout form.
type Chrome struct {
	Title string
	User  *models.User
	CSRF  string
}

func Layout(chrome Chrome, body templ.Component) templ.Component {
	return component(func(ctx context.Context, p *page) {
		p.raw(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta name="referrer" content="no-referrer">
    <title>`)
		p.text(chrome.Title)
		p.raw(` · passkeep</title>
    <style>` + stylesheet + `</style>
</head>
<body>
<header class="topbar">
    <a class="brand" href="/">passkeep</a>`)
		if chrome.User != nil {
			p.raw(`
    <div class="who">
        <span>Welcome, `)
			p.text(chrome.User.Email)
			p.raw(`</span>
        <form method="post" action="/logout">`)
			p.csrf(chrome.CSRF)
			p.raw(`<button type="submit" class="btn secondary">Logout</button></form>
    </div>`)
		}
		p.raw(`
</header>
<main class="container">
`)
		p.component(ctx, body)
		p.raw(`
</main>
</body>
</html>`)
	})
}

const stylesheet = `
* { box-sizing: border-box; }
body { font-family: system-ui, -apple-system, sans-serif; background: #f9fafb; color: #374151; margin: 0; }
.topbar { display: flex; justify-content: space-between; align-items: center; padding: 12px 24px; background: #fff; border-bottom: 1px solid #e5e7eb; }
.brand { font-weight: 700; color: #111827; text-decoration: none; }
.who { display: flex; align-items: center; gap: 12px; font-size: 14px; }
.who form { margin: 0; }
.container { max-width: 960px; margin: 0 auto; padding: 32px 20px; }
h1 { font-size: 24px; color: #111827; margin: 0 0 8px 0; }
.muted { color: #6b7280; font-size: 14px; }
.card { background: #fff; border: 1px solid #e5e7eb; border-radius: 8px; padding: 20px; margin-bottom: 16px; }
.narrow { max-width: 400px; margin: 0 auto; }
.btn { display: inline-block; background: #2563eb; color: #fff; border: none; border-radius: 6px; padding: 8px 16px; font-size: 14px; cursor: pointer; text-decoration: none; }
.btn.secondary { background: #4b5563; }
.btn.danger { background: #dc2626; }
.btn.link { background: none; color: #2563eb; padding: 0 4px; }
label { display: block; font-size: 13px; color: #374151; margin: 12px 0 4px; }
input, textarea { width: 100%; padding: 8px 10px; border: 1px solid #d1d5db; border-radius: 6px; font-size: 14px; }
.toolbar { display: flex; gap: 12px; align-items: center; justify-content: space-between; margin: 24px 0; }
.toolbar form { flex: 1; margin: 0; }
.banner { background: #fef2f2; color: #991b1b; border: 1px solid #fecaca; border-radius: 6px; padding: 10px 14px; margin-bottom: 16px; }
.notice { background: #ecfdf5; color: #065f46; border: 1px solid #a7f3d0; border-radius: 6px; padding: 10px 14px; margin-bottom: 16px; }
.grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(280px, 1fr)); gap: 16px; }
.row { display: flex; justify-content: space-between; align-items: center; font-size: 14px; margin: 6px 0; gap: 8px; }
.secret { font-family: monospace; }
.notes { border-top: 1px solid #e5e7eb; margin-top: 12px; padding-top: 8px; font-size: 14px; }
.empty { text-align: center; padding: 48px 0; }
.providers { display: flex; flex-direction: column; gap: 8px; margin-top: 16px; }
`
