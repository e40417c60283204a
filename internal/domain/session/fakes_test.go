package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

type fakeProvider struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount
	nextID   int
	current  *FederatedSession

	createErr     error
	setNameErr    error
	deleteErr     error
	signInErr     error
	signOutErr    error
	updateErr     error
	updateErrOnce bool
	passwordErr   error

	deleted  []Identity
	signOuts int
}

type fakeAccount struct {
	id          Identity
	email       string
	password    string
	displayName string
	photoURL    string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{accounts: map[string]*fakeAccount{}}
}

func (p *fakeProvider) addAccount(email, password, displayName string) Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := Identity(fmt.Sprintf("uid-%d", p.nextID))
	p.accounts[email] = &fakeAccount{id: id, email: email, password: password, displayName: displayName}
	return id
}

func (p *fakeProvider) byID(id Identity) *fakeAccount {
	for _, a := range p.accounts {
		if a.id == id {
			return a
		}
	}
	return nil
}

func (p *fakeProvider) displayName(id Identity) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a := p.byID(id); a != nil {
		return a.displayName
	}
	return ""
}

func (p *fakeProvider) CreateIdentity(_ context.Context, email, password string) (Identity, error) {
	if p.createErr != nil {
		return "", p.createErr
	}
	if _, ok := p.accounts[email]; ok {
		return "", errors.New("email already in use")
	}
	id := p.addAccount(email, password, "")
	p.mu.Lock()
	p.current = &FederatedSession{Identity: id, Email: email}
	p.mu.Unlock()
	return id, nil
}

func (p *fakeProvider) SetDisplayName(_ context.Context, id Identity, displayName string) error {
	if p.setNameErr != nil {
		return p.setNameErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if a := p.byID(id); a != nil {
		a.displayName = displayName
		return nil
	}
	return errors.New("user not found")
}

func (p *fakeProvider) DeleteIdentity(_ context.Context, id Identity) error {
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for email, a := range p.accounts {
		if a.id == id {
			delete(p.accounts, email)
		}
	}
	p.deleted = append(p.deleted, id)
	p.current = nil
	return nil
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (*FederatedSession, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[email]
	if !ok || a.password != password {
		return nil, errors.New("incorrect username or password")
	}
	p.current = &FederatedSession{
		Identity:    a.id,
		Email:       email,
		DisplayName: a.displayName,
		IDToken:     "id-token-" + string(a.id),
	}
	return p.current, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOuts++
	p.current = nil
	return p.signOutErr
}

func (p *fakeProvider) CurrentSession() (*FederatedSession, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.current != nil
}

func (p *fakeProvider) UpdateProfile(_ context.Context, id Identity, update ProfileUpdate) error {
	if p.updateErr != nil {
		err := p.updateErr
		if p.updateErrOnce {
			p.updateErr = nil
		}
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.byID(id)
	if a == nil {
		return errors.New("user not found")
	}
	if update.DisplayName != nil {
		a.displayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		a.photoURL = *update.PhotoURL
	}
	return nil
}

func (p *fakeProvider) ChangePassword(_ context.Context, id Identity, newPassword string) error {
	if p.passwordErr != nil {
		return p.passwordErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.byID(id)
	if a == nil {
		return errors.New("user not found")
	}
	a.password = newPassword
	return nil
}

type fakeProfiles struct {
	mu        sync.Mutex
	records   map[Identity]ProfileRecord
	createErr error
	getErr    error
	updateErr error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{records: map[Identity]ProfileRecord{}}
}

func (f *fakeProfiles) CreateProfile(_ context.Context, profile ProfileRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[profile.Identity] = profile
	return nil
}

func (f *fakeProfiles) GetProfile(_ context.Context, id Identity) (ProfileRecord, bool, error) {
	if f.getErr != nil {
		return ProfileRecord{}, false, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	return r, ok, nil
}

func (f *fakeProfiles) UpdateDisplayName(_ context.Context, id Identity, displayName string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return errors.New("profile not found")
	}
	r.DisplayName = displayName
	f.records[id] = r
	return nil
}

func (f *fakeProfiles) displayName(id Identity) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[id].DisplayName
}

type fakeTokens struct {
	mu        sync.Mutex
	values    map[string]string
	setErr    error
	deleteErr error
	deletes   int
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{values: map[string]string{}}
}

func (f *fakeTokens) Set(_ context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeTokens) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeTokens) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.values, key)
	return nil
}

func (f *fakeTokens) has(key string) bool {
	_, ok, _ := f.Get(context.Background(), key)
	return ok
}

type fakeCache struct {
	mu       sync.Mutex
	name     *string
	setErr   error
	clearErr error
}

func (c *fakeCache) DisplayName() (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.name == nil {
		return "", false, nil
	}
	return *c.name, true, nil
}

func (c *fakeCache) SetDisplayName(name string) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = &name
	return nil
}

func (c *fakeCache) ClearUserState() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = nil
	return c.clearErr
}

func (c *fakeCache) has() bool {
	_, ok, _ := c.DisplayName()
	return ok
}

// fakeBackend answers PostJSON by path. Handlers return the response body
// which is round-tripped through JSON into out.
type fakeBackend struct {
	mu       sync.Mutex
	handlers map[string]func(in any) (any, error)
	calls    []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{handlers: map[string]func(in any) (any, error){}}
}

func (b *fakeBackend) handle(path string, fn func(in any) (any, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[path] = fn
}

func (b *fakeBackend) PostJSON(_ context.Context, path string, in, out any) error {
	b.mu.Lock()
	b.calls = append(b.calls, path)
	fn, ok := b.handlers[path]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("POST %s: 404", path)
	}

	resp, err := fn(in)
	if err != nil {
		return err
	}
	if out == nil || resp == nil {
		return nil
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (b *fakeBackend) called(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == path {
			n++
		}
	}
	return n
}

type fakePush struct {
	token  string
	ok     bool
	err    error
	panics bool
}

func (f *fakePush) RegisterCurrentDevice(context.Context) (string, bool, error) {
	if f.panics {
		panic("notification service crashed")
	}
	return f.token, f.ok, f.err
}
