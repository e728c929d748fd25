package service

import (
	"context"
	"errors"
	"sync"

	"github.com/mmcdole/storywave/internal/domain"
	"github.com/mmcdole/storywave/internal/query"
)

// mockRemote implements domain.RemoteService for testing. Lists reflect
// writes so refetches observe them.
type mockRemote struct {
	mu sync.Mutex

	stories  []domain.Story
	liked    map[string][]string // principal -> story IDs
	saved    map[string][]string
	profiles map[string]domain.UserProfile
	draft    *domain.StoryDraft
	caller   string

	calls      map[string]int
	audio      map[string][]byte
	readErr    error
	writeErr   error
	viewsErr   error
	resolveErr error

	// viewsGate, when set, holds IncrementViews until it is closed
	viewsGate chan struct{}
	viewed    []string
}

func newMockRemote(caller string) *mockRemote {
	return &mockRemote{
		caller:   caller,
		liked:    make(map[string][]string),
		saved:    make(map[string][]string),
		profiles: make(map[string]domain.UserProfile),
		calls:    make(map[string]int),
		audio:    make(map[string][]byte),
	}
}

func (m *mockRemote) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *mockRemote) hit(op string) {
	m.mu.Lock()
	m.calls[op]++
	m.mu.Unlock()
}

func (m *mockRemote) ListStories(ctx context.Context) ([]domain.Story, error) {
	m.hit("ListStories")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return append([]domain.Story(nil), m.stories...), nil
}

func (m *mockRemote) ListTrending(ctx context.Context, limit int) ([]domain.Story, error) {
	m.hit("ListTrending")
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.Story(nil), m.stories...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, m.readErr
}

func (m *mockRemote) ListByCategory(ctx context.Context, category domain.Category) ([]domain.Story, error) {
	m.hit("ListByCategory")
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Story
	for _, st := range m.stories {
		if st.Category == category {
			out = append(out, st)
		}
	}
	return out, m.readErr
}

func (m *mockRemote) SearchStories(ctx context.Context, term string) ([]domain.Story, error) {
	m.hit("SearchStories")
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Story(nil), m.stories...), m.readErr
}

func (m *mockRemote) ListUserStories(ctx context.Context, principal string) ([]domain.Story, error) {
	m.hit("ListUserStories")
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Story
	for _, st := range m.stories {
		if st.CreatorID == principal {
			out = append(out, st)
		}
	}
	return out, m.readErr
}

func (m *mockRemote) ListUserLikedIDs(ctx context.Context, principal string) ([]string, error) {
	m.hit("ListUserLikedIDs")
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.liked[principal]...), m.readErr
}

func (m *mockRemote) ListUserSavedIDs(ctx context.Context, principal string) ([]string, error) {
	m.hit("ListUserSavedIDs")
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.saved[principal]...), m.readErr
}

func (m *mockRemote) GetCallerProfile(ctx context.Context) (domain.Option[domain.UserProfile], error) {
	m.hit("GetCallerProfile")
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[m.caller]; ok {
		return domain.Some(p), nil
	}
	return domain.None[domain.UserProfile](), m.readErr
}

func (m *mockRemote) GetUserProfile(ctx context.Context, principal string) (domain.Option[domain.UserProfile], error) {
	m.hit("GetUserProfile")
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[principal]; ok {
		return domain.Some(p), nil
	}
	return domain.None[domain.UserProfile](), m.readErr
}

func (m *mockRemote) GetDraftStory(ctx context.Context) (domain.Option[domain.StoryDraft], error) {
	m.hit("GetDraftStory")
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.FromPtr(m.draft), m.readErr
}

func (m *mockRemote) write(op string, apply func()) error {
	m.hit(op)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	apply()
	return nil
}

func (m *mockRemote) SaveStory(ctx context.Context, story domain.Story) error {
	return m.write("SaveStory", func() {
		m.stories = append(m.stories, story)
	})
}

func (m *mockRemote) SaveAudio(ctx context.Context, storyID string, audio []byte, progress domain.ProgressFunc) error {
	return m.write("SaveAudio", func() {
		m.audio[storyID] = audio
		for i := range m.stories {
			if m.stories[i].ID == storyID {
				m.stories[i].AudioRef = "audio/" + storyID
			}
		}
		if progress != nil {
			progress(len(audio), len(audio))
		}
	})
}

func (m *mockRemote) LikeStory(ctx context.Context, storyID string) error {
	return m.write("LikeStory", func() {
		m.liked[m.caller] = append(m.liked[m.caller], storyID)
		m.bumpLikes(storyID, 1)
	})
}

func (m *mockRemote) UnlikeStory(ctx context.Context, storyID string) error {
	return m.write("UnlikeStory", func() {
		m.liked[m.caller] = remove(m.liked[m.caller], storyID)
		m.bumpLikes(storyID, -1)
	})
}

func (m *mockRemote) bumpLikes(storyID string, delta int) {
	for i := range m.stories {
		if m.stories[i].ID == storyID {
			m.stories[i].LikeCount = uint64(int(m.stories[i].LikeCount) + delta)
		}
	}
}

func (m *mockRemote) SaveToLibrary(ctx context.Context, storyID string) error {
	return m.write("SaveToLibrary", func() {
		m.saved[m.caller] = append([]string{storyID}, m.saved[m.caller]...)
	})
}

func (m *mockRemote) UnsaveFromLibrary(ctx context.Context, storyID string) error {
	return m.write("UnsaveFromLibrary", func() {
		m.saved[m.caller] = remove(m.saved[m.caller], storyID)
	})
}

func (m *mockRemote) IncrementViews(ctx context.Context, storyID string) error {
	m.hit("IncrementViews")
	m.mu.Lock()
	gate := m.viewsGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewed = append(m.viewed, storyID)
	if m.viewsErr != nil {
		return m.viewsErr
	}
	for i := range m.stories {
		if m.stories[i].ID == storyID {
			m.stories[i].ViewCount++
		}
	}
	return nil
}

func (m *mockRemote) SaveProfile(ctx context.Context, profile domain.UserProfile) error {
	return m.write("SaveProfile", func() {
		m.profiles[m.caller] = profile
	})
}

func (m *mockRemote) GenerateDraft(ctx context.Context, req domain.DraftRequest) error {
	return m.write("GenerateDraft", func() {
		m.draft = &domain.StoryDraft{
			ID:     req.ID,
			Author: m.caller,
			Draft:  domain.AIGeneratedStory{Title: "Draft " + req.Genre, Genre: req.Genre, Tone: req.Tone},
		}
	})
}

func (m *mockRemote) ResolveAudioURL(ctx context.Context, ref string) (string, error) {
	m.hit("ResolveAudioURL")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolveErr != nil {
		return "", m.resolveErr
	}
	return "https://cdn.example.com/" + ref, nil
}

func remove(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// mockProvider implements domain.IdentityProvider for testing.
type mockProvider struct {
	mu        sync.Mutex
	current   *domain.Identity
	next      domain.Identity
	loginErrs []error // consumed one per Login call
	logoutErr error
	logins    int
	logouts   int
	loginGate chan struct{} // when set, Login blocks until closed
}

func (p *mockProvider) Current() (domain.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return domain.Identity{}, false
	}
	return *p.current, true
}

func (p *mockProvider) Login(ctx context.Context) (domain.Identity, error) {
	p.mu.Lock()
	p.logins++
	gate := p.loginGate
	var err error
	if len(p.loginErrs) > 0 {
		err = p.loginErrs[0]
		p.loginErrs = p.loginErrs[1:]
	}
	next := p.next
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.Identity{}, err
	}

	p.mu.Lock()
	p.current = &next
	p.mu.Unlock()
	return next, nil
}

func (p *mockProvider) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts++
	p.current = nil
	return p.logoutErr
}

// fixture wires a session and story service around one mock remote.
type fixture struct {
	remote   *mockRemote
	provider *mockProvider
	cache    *query.Cache
	session  *Session
	stories  *StoryService
	recent   *mockRecent
	clients  []domain.Identity // identities passed to the client factory
}

type mockRecent struct {
	ids []string
}

func (r *mockRecent) List() []string { return r.ids }

var errClientUnavailable = errors.New("client unavailable")

// newFixture starts a session signed in as principal ("" for anonymous).
func newFixture(principal string) *fixture {
	f := &fixture{
		remote:   newMockRemote(principal),
		provider: &mockProvider{},
		cache:    query.NewCache(nil),
		recent:   &mockRecent{},
	}
	if principal != "" {
		f.provider.current = &domain.Identity{Principal: principal, Token: "tok-" + principal}
	}
	f.session = NewSession(f.provider, func(id domain.Identity, authenticated bool) (domain.RemoteService, error) {
		f.clients = append(f.clients, id)
		return f.remote, nil
	}, f.cache, nil)
	f.session.SetLoginRetryDelay(0)
	f.stories = NewStoryService(f.session, f.cache, f.recent, nil)
	if err := f.session.Start(); err != nil {
		panic(err)
	}
	return f
}

func sampleStories() []domain.Story {
	return []domain.Story{
		{ID: "s1", Title: "The Long Night", Category: domain.CategoryHorror, CreatorID: "p1", LikeCount: 3, AudioRef: "a1.mp3"},
		{ID: "s2", Title: "Stars Above", Category: domain.CategorySciFi, CreatorID: "p2", LikeCount: 5, AudioRef: "a2.mp3"},
		{ID: "s3", Title: "Laugh Track", Category: domain.CategoryComedy, CreatorID: "p1", AudioRef: "a3.mp3"},
	}
}
