package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mentorhub/backend/internal/config"
	"github.com/mentorhub/backend/internal/feedback"
	"github.com/mentorhub/backend/internal/models"
	"github.com/mentorhub/backend/pkg/logger"
	"gorm.io/gorm"
)

// Session roles
const (
	RoleReviewer  = "reviewer"  // writes feedback and triages automated items
	RoleRecipient = "recipient" // the document owner resolving feedback
)

const maxSessionNotices = 20

var (
	ErrSessionNotFound = errors.New("review session not found")
	ErrSessionRole     = errors.New("action not available in this session role")
)

// ReviewSession is one user's open editing session on a document version.
type ReviewSession struct {
	ID        string
	UserID    uint
	Role      string
	VersionID uint

	session   *feedback.Session
	reviewer  *feedback.AuthorPanel
	recipient *feedback.RecipientPanel

	mu       sync.Mutex
	notices  []feedback.Notice
	lastUsed time.Time
}

// IslandView is the review island as the client renders it.
type IslandView struct {
	Index   int               `json:"index"`
	Visible bool              `json:"visible"`
	Count   int               `json:"count"`
	Current *feedback.Item    `json:"current,omitempty"`
	Save    feedback.SaveView `json:"save"`
}

// SessionView is the full client state of a review session.
type SessionView struct {
	ID                string                   `json:"id"`
	Role              string                   `json:"role"`
	DocumentVersionID uint                     `json:"document_version_id"`
	Content           string                   `json:"content"`
	Entries           []feedback.Entry         `json:"entries"`
	Unresolved        []feedback.Item          `json:"unresolved,omitempty"`
	Highlights        []feedback.HighlightSpec `json:"highlights"`
	ActiveID          *feedback.ID             `json:"active_id"`
	Selection         string                   `json:"selection"`
	Island            IslandView               `json:"island"`
	Notices           []feedback.Notice        `json:"notices,omitempty"`
}

func (rs *ReviewSession) notify(n feedback.Notice) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.notices = append(rs.notices, n)
	if len(rs.notices) > maxSessionNotices {
		rs.notices = rs.notices[len(rs.notices)-maxSessionNotices:]
	}
}

// drainNotices returns and clears the pending notices.
func (rs *ReviewSession) drainNotices() []feedback.Notice {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := rs.notices
	rs.notices = nil
	return out
}

func (rs *ReviewSession) touch(now time.Time) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.lastUsed = now
}

func (rs *ReviewSession) idleSince() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.lastUsed
}

// islandItems is what the carousel walks: automated items for a reviewer,
// unresolved items for the recipient.
func (rs *ReviewSession) islandItems() []feedback.Item {
	if rs.reviewer != nil {
		var out []feedback.Item
		for _, item := range rs.reviewer.Items() {
			if item.Author.IsAutomated() {
				out = append(out, item)
			}
		}
		return out
	}
	return rs.recipient.Pending()
}

// sync realigns the island with the panel after a panel action.
func (rs *ReviewSession) sync() {
	if island := rs.session.Island(); island != nil {
		island.SetItems(rs.islandItems())
	}
}

// View snapshots the session for the client and drains pending notices.
func (rs *ReviewSession) View() *SessionView {
	view := &SessionView{
		ID:                rs.ID,
		Role:              rs.Role,
		DocumentVersionID: rs.VersionID,
		Content:           rs.session.Content(),
	}
	if rs.reviewer != nil {
		view.Entries = rs.reviewer.Entries()
		view.Highlights = rs.reviewer.Highlights()
		view.ActiveID = rs.reviewer.ActiveID()
		view.Selection = rs.reviewer.Selection()
	} else {
		for _, item := range rs.recipient.Items() {
			item := item
			view.Entries = append(view.Entries, feedback.Entry{Item: &item})
		}
		view.Unresolved = rs.recipient.Pending()
		view.Highlights = rs.recipient.Highlights()
		view.ActiveID = rs.recipient.ActiveID()
		view.Selection = rs.recipient.Selection()
	}
	if island := rs.session.Island(); island != nil {
		view.Island = IslandView{
			Index:   island.Index(),
			Visible: island.Visible(),
			Count:   len(island.Items()),
			Save:    island.SaveView(),
		}
		if item, ok := island.Current(); ok {
			view.Island.Current = &item
		}
	}
	view.Notices = rs.drainNotices()
	return view
}

func (rs *ReviewSession) SetContent(content string) { rs.session.SetContent(content) }

func (rs *ReviewSession) SetSelection(text string) {
	if rs.reviewer != nil {
		rs.reviewer.SetSelection(text)
		return
	}
	rs.recipient.SetSelection(text)
}

func (rs *ReviewSession) Select(id feedback.ID) error {
	if rs.reviewer != nil {
		return rs.reviewer.Select(id)
	}
	return rs.recipient.SelectItem(id)
}

// Reload refetches the panel's items from the store.
func (rs *ReviewSession) Reload(ctx context.Context) error {
	var err error
	if rs.reviewer != nil {
		err = rs.reviewer.Load(ctx)
	} else {
		err = rs.recipient.Load(ctx)
	}
	if err == nil {
		rs.sync()
	}
	return err
}

func (rs *ReviewSession) Save(ctx context.Context) error { return rs.session.Save(ctx) }

// ItemAction names the per-item operations exposed over HTTP.
type ItemAction string

const (
	ActionAccept  ItemAction = "accept"
	ActionReject  ItemAction = "reject"
	ActionRemove  ItemAction = "remove"
	ActionApply   ItemAction = "apply"
	ActionThank   ItemAction = "thank"
	ActionDismiss ItemAction = "dismiss"
)

// Submit attaches new feedback to the current selection. Reviewer only.
func (rs *ReviewSession) Submit(ctx context.Context, text string, typ feedback.Type) (feedback.Item, error) {
	if rs.reviewer == nil {
		return feedback.Item{}, ErrSessionRole
	}
	return rs.reviewer.Submit(ctx, text, typ)
}

// Act runs a per-item action allowed for the session's role.
func (rs *ReviewSession) Act(ctx context.Context, action ItemAction, id feedback.ID) error {
	var err error
	switch {
	case rs.reviewer != nil && action == ActionAccept:
		_, err = rs.reviewer.Accept(ctx, id)
	case rs.reviewer != nil && action == ActionReject:
		err = rs.reviewer.Reject(ctx, id)
	case rs.reviewer != nil && action == ActionRemove:
		err = rs.reviewer.Remove(ctx, id)
	case rs.recipient != nil && action == ActionApply:
		_, err = rs.recipient.ApplySuggestion(ctx, id)
	case rs.recipient != nil && action == ActionThank:
		_, err = rs.recipient.Thank(ctx, id)
	case rs.recipient != nil && action == ActionDismiss:
		err = rs.recipient.Dismiss(ctx, id)
	default:
		return ErrSessionRole
	}
	rs.sync()
	return err
}

// Island operations

func (rs *ReviewSession) island() (*feedback.Island, error) {
	island := rs.session.Island()
	if island == nil {
		return nil, feedback.ErrClosed
	}
	return island, nil
}

func (rs *ReviewSession) IslandNext() error {
	island, err := rs.island()
	if err != nil {
		return err
	}
	island.Next()
	island.Show()
	return nil
}

func (rs *ReviewSession) IslandPrev() error {
	island, err := rs.island()
	if err != nil {
		return err
	}
	island.Prev()
	island.Show()
	return nil
}

func (rs *ReviewSession) IslandApply(ctx context.Context) error {
	island, err := rs.island()
	if err != nil {
		return err
	}
	return island.Apply(ctx)
}

func (rs *ReviewSession) IslandReject(ctx context.Context) error {
	island, err := rs.island()
	if err != nil {
		return err
	}
	return island.Reject(ctx)
}

func (rs *ReviewSession) IslandSave(ctx context.Context) error {
	island, err := rs.island()
	if err != nil {
		return err
	}
	return island.Save(ctx)
}

func (rs *ReviewSession) IslandInteract(on bool) error {
	island, err := rs.island()
	if err != nil {
		return err
	}
	island.SetInteracting(on)
	return nil
}

// SessionManager holds the open review sessions of this instance.
type SessionManager struct {
	docs    *DocumentService
	gateway feedback.Gateway
	cfg     config.ReviewConfig
	now     func() time.Time

	islandOpts []feedback.IslandOption

	mu       sync.Mutex
	sessions map[string]*ReviewSession
}

func NewSessionManager(db *gorm.DB, gateway feedback.Gateway, cfg config.ReviewConfig) *SessionManager {
	return &SessionManager{
		docs:     NewDocumentService(db),
		gateway:  gateway,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*ReviewSession),
	}
}

// OpenSessionRequest selects the document version and, optionally, the role.
type OpenSessionRequest struct {
	DocumentVersionID uint   `json:"document_version_id" binding:"required"`
	Role              string `json:"role" binding:"omitempty,oneof=reviewer recipient"`
}

// Open starts a session. The owner defaults to recipient, everyone else who may
// review defaults to reviewer.
func (m *SessionManager) Open(ctx context.Context, req *OpenSessionRequest, user *models.User) (*ReviewSession, error) {
	version, doc, err := m.docs.GetVersion(ctx, req.DocumentVersionID, user)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = RoleReviewer
		if doc.OwnerID == user.ID {
			role = RoleRecipient
		}
	}
	switch role {
	case RoleRecipient:
		if doc.OwnerID != user.ID {
			return nil, ErrSessionRole
		}
	case RoleReviewer:
		if !user.CanReview() {
			return nil, ErrSessionRole
		}
	}

	rs := &ReviewSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      role,
		VersionID: version.ID,
		lastUsed:  m.now(),
	}
	notifier := feedback.NotifierFunc(rs.notify)
	versionID := version.ID
	save := func(ctx context.Context, content string) error {
		return m.docs.SaveContent(ctx, versionID, content)
	}

	islandOpts := append([]feedback.IslandOption{feedback.WithIdleDelay(m.cfg.IslandIdleDelay)}, m.islandOpts...)
	rs.session = feedback.NewSession(version.Content, save,
		feedback.WithSessionNotifier(notifier),
		feedback.WithIslandOptions(islandOpts...),
	)

	vid := FormatVersionID(version.ID)
	var resolver feedback.Resolver
	if role == RoleReviewer {
		rs.reviewer = feedback.NewAuthorPanel(m.gateway, rs.session, feedback.Human(userKey(user.ID)), vid, feedback.WithNotifier(notifier))
		rs.session.Track(rs.reviewer)
		resolver = feedback.AuthorResolver(rs.reviewer)
	} else {
		rs.recipient = feedback.NewRecipientPanel(m.gateway, rs.session, vid, feedback.WithNotifier(notifier))
		rs.session.Track(rs.recipient)
		resolver = feedback.RecipientResolver(rs.recipient)
	}

	if err := rs.Reload(ctx); err != nil {
		rs.session.Dispose()
		return nil, err
	}
	rs.session.OpenIsland(resolver, rs.islandItems())

	m.mu.Lock()
	m.sessions[rs.ID] = rs
	reviewSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	logger.Infof("[Review] Session %s opened by user %d as %s on version %d", rs.ID, user.ID, role, version.ID)
	return rs, nil
}

// userKey is the author id a user's feedback is stored under.
func userKey(id uint) string {
	return FormatVersionID(id)
}

// Get returns the user's session and marks it used.
func (m *SessionManager) Get(id string, user *models.User) (*ReviewSession, error) {
	m.mu.Lock()
	rs, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || rs.UserID != user.ID {
		return nil, ErrSessionNotFound
	}
	rs.touch(m.now())
	return rs, nil
}

// Close disposes a session. In-flight results for it are discarded.
func (m *SessionManager) Close(id string, user *models.User) error {
	m.mu.Lock()
	rs, ok := m.sessions[id]
	if !ok || rs.UserID != user.ID {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	reviewSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	rs.session.Dispose()
	return nil
}

// ReapIdle disposes sessions unused for longer than the configured timeout.
func (m *SessionManager) ReapIdle() int {
	timeout := m.cfg.SessionIdleTimeout
	if timeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-timeout)

	var stale []*ReviewSession
	m.mu.Lock()
	for id, rs := range m.sessions {
		if rs.idleSince().Before(cutoff) {
			stale = append(stale, rs)
			delete(m.sessions, id)
		}
	}
	reviewSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, rs := range stale {
		rs.session.Dispose()
	}
	if len(stale) > 0 {
		logger.Infof("[Review] Reaped %d idle sessions", len(stale))
	}
	return len(stale)
}

// CloseVersions disposes every session open on one of versionIDs, used when
// the versions are deleted.
func (m *SessionManager) CloseVersions(versionIDs ...uint) int {
	gone := make(map[uint]struct{}, len(versionIDs))
	for _, id := range versionIDs {
		gone[id] = struct{}{}
	}

	var closed []*ReviewSession
	m.mu.Lock()
	for id, rs := range m.sessions {
		if _, ok := gone[rs.VersionID]; ok {
			closed = append(closed, rs)
			delete(m.sessions, id)
		}
	}
	reviewSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, rs := range closed {
		rs.session.Dispose()
	}
	if len(closed) > 0 {
		logger.Infof("[Review] Closed %d sessions on deleted versions", len(closed))
	}
	return len(closed)
}

// CloseAll disposes every session, used on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*ReviewSession)
	reviewSessionsActive.Set(0)
	m.mu.Unlock()

	for _, rs := range sessions {
		rs.session.Dispose()
	}
}

func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
