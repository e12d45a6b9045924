package records

import (
	"context"
	"slices"

	"github.com/dimitrije/passkeep/internal/models"
	"github.com/google/uuid"
)

// Store is the owner-scoped record persistence the manager drives.
type Store interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Record, error)
	Insert(ctx context.Context, ownerID uuid.UUID, fields models.RecordFields) (*models.Record, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

type Field string

const (
	FieldUsername Field = "username"
	FieldPassword Field = "password"
	FieldURL      Field = "url"
)

type EmptyState struct {
	Title string
	Hint  string
}

// Manager holds one owner's credential list for the lifetime of a page and
// applies add, delete, reveal and search to it. Local state only changes
// after the store has accepted a mutation.
type Manager struct {
	store    Store
	ownerID  uuid.UUID
	records  []models.Record
	adding   bool
	form     models.RecordFields
	revealed map[uuid.UUID]bool
	search   string
	banner   error
}

func NewManager(store Store, ownerID uuid.UUID) *Manager {
	return &Manager{
		store:    store,
		ownerID:  ownerID,
		revealed: make(map[uuid.UUID]bool),
	}
}

// Load replaces the local list with the store's. On failure the list is
// empty, the banner is set and the StoreError is returned.
func (m *Manager) Load(ctx context.Context) error {
	recs, err := m.store.List(ctx, m.ownerID)
	if err != nil {
		m.records = nil
		m.banner = &StoreError{Op: "list", Err: err}
		return m.banner
	}
	m.Seed(recs)
	return nil
}

// Seed sets the local list, dropping anything not owned by the manager's owner.
func (m *Manager) Seed(recs []models.Record) {
	m.records = make([]models.Record, 0, len(recs))
	for _, r := range recs {
		if r.OwnerID == m.ownerID {
			m.records = append(m.records, r)
		}
	}
}

func (m *Manager) Visible() []models.Record {
	return Search(m.records, m.search)
}

func (m *Manager) SetSearch(term string) { m.search = term }
func (m *Manager) SearchTerm() string    { return m.search }

func (m *Manager) Adding() bool                  { return m.adding }
func (m *Manager) Form() models.RecordFields     { return m.form }
func (m *Manager) SetForm(f models.RecordFields) { m.form = f }

// ToggleAdding opens or closes the add form. Closing it discards the form.
func (m *Manager) ToggleAdding() {
	m.adding = !m.adding
	if !m.adding {
		m.form = models.RecordFields{}
	}
}

func (m *Manager) Submit(ctx context.Context) (*models.Record, error) {
	if !m.adding {
		return nil, ErrNotAdding
	}

	fields := Normalize(m.form)
	if err := Validate(fields); err != nil {
		m.banner = err
		return nil, err
	}

	rec, err := m.store.Insert(ctx, m.ownerID, fields)
	if err != nil {
		m.banner = &StoreError{Op: "insert", Err: err}
		return nil, m.banner
	}

	m.records = slices.Insert(m.records, 0, *rec)
	m.form = models.RecordFields{}
	m.adding = false
	m.banner = nil
	return rec, nil
}

func (m *Manager) Delete(ctx context.Context, id uuid.UUID, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}

	idx := m.index(id)
	if idx < 0 {
		return ErrRecordNotFound
	}

	if err := m.store.Delete(ctx, m.ownerID, id); err != nil {
		m.banner = &StoreError{Op: "delete", Err: err}
		return m.banner
	}

	m.records = slices.Delete(m.records, idx, idx+1)
	delete(m.revealed, id)
	m.banner = nil
	return nil
}

func (m *Manager) Get(id uuid.UUID) (models.Record, bool) {
	idx := m.index(id)
	if idx < 0 {
		return models.Record{}, false
	}
	return m.records[idx], true
}

func (m *Manager) ToggleReveal(id uuid.UUID) {
	if m.revealed[id] {
		delete(m.revealed, id)
		return
	}
	m.revealed[id] = true
}

func (m *Manager) Revealed(id uuid.UUID) bool { return m.revealed[id] }

// RevealedIDs lists revealed ids in list order, skipping ids no longer held.
func (m *Manager) RevealedIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, r := range m.records {
		if m.revealed[r.ID] {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func (m *Manager) DisplayPassword(r models.Record) string {
	return Display(r.Password, m.revealed[r.ID])
}

// Copy returns the raw value of one field of a held record.
func (m *Manager) Copy(id uuid.UUID, field Field) (string, error) {
	r, ok := m.Get(id)
	if !ok {
		return "", ErrRecordNotFound
	}
	switch field {
	case FieldUsername:
		return r.Username, nil
	case FieldPassword:
		return r.Password, nil
	case FieldURL:
		if r.URL == nil {
			return "", &ValidationError{Field: "url", Message: "is empty"}
		}
		return *r.URL, nil
	default:
		return "", &ValidationError{Field: string(field), Message: "cannot be copied"}
	}
}

func (m *Manager) Banner() error       { return m.banner }
func (m *Manager) SetBanner(err error) { m.banner = err }

// Empty reports the empty-state message when nothing is visible.
func (m *Manager) Empty() (EmptyState, bool) {
	if len(m.Visible()) > 0 {
		return EmptyState{}, false
	}
	state := EmptyState{Title: "No passwords found", Hint: "Start by adding a new password"}
	if len(m.records) > 0 {
		state.Hint = "Try different search terms"
	}
	return state, true
}

func (m *Manager) index(id uuid.UUID) int {
	return slices.IndexFunc(m.records, func(r models.Record) bool { return r.ID == id })
}
