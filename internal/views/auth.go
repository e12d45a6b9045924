package views

import (
	"context"
	"strings"

	"github.com/a-h/templ"
)

// AuthForm backs the login and register pages. Passwords are never echoed back.
type AuthForm struct {
	CSRF      string
	Email     string
	Name      string
	Error     string
	Notice    string
	Providers []string
}

func Landing() templ.Component {
	return Layout(Chrome{Title: "Welcome"}, component(func(ctx context.Context, p *page) {
		p.raw(`<div class="card narrow">
    <h1>Secure password management</h1>
    <p class="muted">Keep your credentials in one place, scoped to your account.</p>
    <p><a class="btn" href="/login">Login</a> <a class="btn secondary" href="/register">Register</a></p>
</div>`)
	}))
}

func Login(f AuthForm) templ.Component {
	return Layout(Chrome{Title: "Login"}, component(func(ctx context.Context, p *page) {
		p.raw(`<div class="card narrow">
    <h1>Login</h1>`)
		messages(p, f)
		p.raw(`
    <form method="post" action="/login">`)
		p.csrf(f.CSRF)
		p.raw(`
        <label for="email">Email</label>
        <input id="email" name="email" type="email" autocomplete="username" required value="`)
		p.text(f.Email)
		p.raw(`">
        <label for="password">Password</label>
        <input id="password" name="password" type="password" autocomplete="current-password" required>
        <p><button type="submit" class="btn">Login</button></p>
    </form>`)
		providerLinks(p, f.Providers)
		p.raw(`
    <p class="muted">No account yet? <a href="/register">Register</a></p>
</div>`)
	}))
}

func Register(f AuthForm) templ.Component {
	return Layout(Chrome{Title: "Register"}, component(func(ctx context.Context, p *page) {
		p.raw(`<div class="card narrow">
    <h1>Register</h1>`)
		messages(p, f)
		p.raw(`
    <form method="post" action="/register">`)
		p.csrf(f.CSRF)
		p.raw(`
        <label for="name">Name</label>
        <input id="name" name="name" type="text" autocomplete="name" value="`)
		p.text(f.Name)
		p.raw(`">
        <label for="email">Email</label>
        <input id="email" name="email" type="email" autocomplete="username" required value="`)
		p.text(f.Email)
		p.raw(`">
        <label for="password">Password</label>
        <input id="password" name="password" type="password" autocomplete="new-password" minlength="8" required>
        <p><button type="submit" class="btn">Create account</button></p>
    </form>`)
		providerLinks(p, f.Providers)
		p.raw(`
    <p class="muted">Already registered? <a href="/login">Login</a></p>
</div>`)
	}))
}

func ErrorPage(title, message string) templ.Component {
	return Layout(Chrome{Title: title}, component(func(ctx context.Context, p *page) {
		p.raw(`<div class="card narrow">
    <h1>`)
		p.text(title)
		p.raw(`</h1>
    <p class="banner" role="alert">`)
		p.text(message)
		p.raw(`</p>
    <p><a href="/">Back to start</a></p>
</div>`)
	}))
}

func messages(p *page, f AuthForm) {
	if f.Error != "" {
		p.raw(`
    <div class="banner" role="alert">`)
		p.text(f.Error)
		p.raw(`</div>`)
	}
	if f.Notice != "" {
		p.raw(`
    <div class="notice" role="status">`)
		p.text(f.Notice)
		p.raw(`</div>`)
	}
}

func providerLinks(p *page, providers []string) {
	if len(providers) == 0 {
		return
	}
	p.raw(`
    <div class="providers">`)
	for _, name := range providers {
		p.raw(`
        <a class="btn secondary" href="`)
		p.href("/auth/" + name + "/login")
		p.raw(`">Continue with `)
		p.text(providerLabel(name))
		p.raw(`</a>`)
	}
	p.raw(`
    </div>`)
}

func providerLabel(name string) string {
	switch name {
	case "github":
		return "GitHub"
	case "gitlab":
		return "GitLab"
	case "google":
		return "Google"
	}
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
