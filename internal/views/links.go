package views

import (
	"net/url"
	"slices"

	"github.com/dimitrije/passkeep/internal/records"
	"github.com/google/uuid"
)

// AppState is the part of the credential manager carried in the /app query
// string: ?q=<term>&add=1&reveal=<id>&reveal=<id>.
type AppState struct {
	Search string
	Adding bool
	Reveal []uuid.UUID
}

// ParseAppState reads /app query values, skipping malformed reveal ids.
func ParseAppState(values url.Values) AppState {
	state := AppState{
		Search: values.Get("q"),
		Adding: values.Get("add") == "1",
	}
	for _, raw := range values["reveal"] {
		if id, err := uuid.Parse(raw); err == nil && !slices.Contains(state.Reveal, id) {
			state.Reveal = append(state.Reveal, id)
		}
	}
	return state
}

// Apply replays the state onto a freshly loaded manager.
func (s AppState) Apply(m *records.Manager) {
	m.SetSearch(s.Search)
	if s.Adding != m.Adding() {
		m.ToggleAdding()
	}
	for _, id := range s.Reveal {
		if _, ok := m.Get(id); ok && !m.Revealed(id) {
			m.ToggleReveal(id)
		}
	}
}

func StateOf(m *records.Manager) AppState {
	return AppState{
		Search: m.SearchTerm(),
		Adding: m.Adding(),
		Reveal: m.RevealedIDs(),
	}
}

func (s AppState) URL() string {
	values := url.Values{}
	if s.Search != "" {
		values.Set("q", s.Search)
	}
	if s.Adding {
		values.Set("add", "1")
	}
	for _, id := range s.Reveal {
		values.Add("reveal", id.String())
	}
	if len(values) == 0 {
		return "/app"
	}
	return "/app?" + values.Encode()
}

// WithAdding returns s with the add form opened or closed.
func (s AppState) WithAdding(adding bool) AppState {
	s.Adding = adding
	return s
}

func (s AppState) ToggleReveal(id uuid.UUID) AppState {
	reveal := slices.Clone(s.Reveal)
	if i := slices.Index(reveal, id); i >= 0 {
		s.Reveal = slices.Delete(reveal, i, i+1)
		return s
	}
	s.Reveal = append(reveal, id)
	return s
}

func RecordDeleteURL(id uuid.UUID) string {
	return "/app/records/" + id.String() + "/delete"
}

func RecordSecretURL(id uuid.UUID) string {
	return "/app/records/" + id.String() + "/secret"
}
