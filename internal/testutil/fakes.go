// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/campusbot/onboard/internal/platform"
	"github.com/samber/lo"
)

// Call records one mutating Directory call.
type Call struct {
	Op     string
	UserID string
	Arg    string
}

// Directory is an in-memory platform.Directory that records mutations.
type Directory struct {
	roles     map[string]*platform.Role // by name
	members   map[string]map[string]bool
	nicknames map[string]string
	fail      map[string]error
	reads     map[string]int
	calls     []Call
	nextID    int
	mu        sync.Mutex
}

var _ platform.Directory = (*Directory)(nil)

// NewDirectory creates a directory holding roles with the given names.
func NewDirectory(roleNames ...string) *Directory {
	d := &Directory{
		roles:     map[string]*platform.Role{},
		members:   map[string]map[string]bool{},
		nicknames: map[string]string{},
		fail:      map[string]error{},
		reads:     map[string]int{},
	}
	for _, name := range roleNames {
		d.addRole(name)
	}
	return d
}

func (d *Directory) addRole(name string) *platform.Role {
	d.nextID++
	r := &platform.Role{ID: fmt.Sprintf("role-%d", d.nextID), Name: name}
	d.roles[name] = r
	return r
}

// Fail makes every call to op ("grant", "revoke", "nickname", "create",
// "find", "roles", "list", "members") return err. A nil err clears it.
func (d *Directory) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, op)
		return
	}
	d.fail[op] = err
}

// DeleteRole removes a role from the platform.
func (d *Directory) DeleteRole(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.roles, name)
}

// Give makes userID hold the named role without recording a call.
func (d *Directory) Give(userID, roleName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.roles[roleName]
	if !ok {
		r = d.addRole(roleName)
	}
	if d.members[userID] == nil {
		d.members[userID] = map[string]bool{}
	}
	d.members[userID][r.ID] = true
}

// HasRole reports whether userID holds the named role.
func (d *Directory) HasRole(userID, roleName string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.roles[roleName]
	return ok && d.members[userID][r.ID]
}

// RoleNames returns the names of the roles userID holds, sorted.
func (d *Directory) RoleNames(userID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var names []string
	for name, r := range d.roles {
		if d.members[userID][r.ID] {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Nickname returns the nickname set for userID.
func (d *Directory) Nickname(userID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nicknames[userID]
}

// Calls returns the recorded mutating calls.
func (d *Directory) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.calls)
}

// CallsFor returns recorded calls with the given op.
func (d *Directory) CallsFor(op string) []Call {
	return lo.Filter(d.Calls(), func(c Call, _ int) bool { return c.Op == op })
}

// Reads returns how many times the read op ("find", "roles", "list",
// "members") was called.
func (d *Directory) Reads(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads[op]
}

// RoleCount returns how many roles have the given name (0 or 1).
func (d *Directory) RoleCount(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.roles[name]; ok {
		return 1
	}
	return 0
}

func (d *Directory) FindRoleByName(_ context.Context, name string) (*platform.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads["find"]++
	if err := d.fail["find"]; err != nil {
		return nil, err
	}
	r, ok := d.roles[name]
	if !ok {
		return nil, platform.ErrRoleNotFound
	}
	cp := *r
	return &cp, nil
}

func (d *Directory) Roles(context.Context) ([]platform.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads["roles"]++
	if err := d.fail["roles"]; err != nil {
		return nil, err
	}
	return lo.MapToSlice(d.roles, func(_ string, r *platform.Role) platform.Role { return *r }), nil
}

func (d *Directory) CreateRole(_ context.Context, name string) (*platform.Role, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fail["create"]; err != nil {
		return nil, err
	}
	if _, ok := d.roles[name]; ok {
		return nil, fmt.Errorf("duplicate role %q", name)
	}
	d.calls = append(d.calls, Call{Op: "create", Arg: name})
	cp := *d.addRole(name)
	return &cp, nil
}

func (d *Directory) GrantRole(_ context.Context, userID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: "grant", UserID: userID, Arg: roleID})
	if err := d.fail["grant"]; err != nil {
		return err
	}
	if d.members[userID] == nil {
		d.members[userID] = map[string]bool{}
	}
	d.members[userID][roleID] = true
	return nil
}

func (d *Directory) RevokeRole(_ context.Context, userID, roleID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: "revoke", UserID: userID, Arg: roleID})
	if err := d.fail["revoke"]; err != nil {
		return err
	}
	delete(d.members[userID], roleID)
	return nil
}

func (d *Directory) SetNickname(_ context.Context, userID, nickname string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Op: "nickname", UserID: userID, Arg: nickname})
	if err := d.fail["nickname"]; err != nil {
		return err
	}
	d.nicknames[userID] = nickname
	return nil
}

func (d *Directory) ListRoleNames(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads["list"]++
	if err := d.fail["list"]; err != nil {
		return nil, err
	}
	return lo.Keys(d.roles), nil
}

func (d *Directory) MemberRoleIDs(_ context.Context, userID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads["members"]++
	if err := d.fail["members"]; err != nil {
		return nil, err
	}
	return lo.Keys(d.members[userID]), nil
}

// Mail is one message captured by Mailer.
type Mail struct {
	To          string
	Code        string
	DisplayName string
}

// Mailer is a platform.Mailer that captures messages.
type Mailer struct {
	err  error
	sent []Mail
	mu   sync.Mutex
}

var _ platform.Mailer = (*Mailer)(nil)

// NewMailer creates a capturing mailer.
func NewMailer() *Mailer {
	return &Mailer{}
}

// Fail makes subsequent sends return err; nil restores delivery.
func (m *Mailer) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mailer) SendCode(_ context.Context, to, code, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, Mail{To: to, Code: code, DisplayName: displayName})
	return nil
}

// Sent returns every delivered message.
func (m *Mailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

// Last returns the most recent delivered message.
func (m *Mailer) Last() (Mail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return Mail{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// Notifier is a platform.Notifier that captures messages.
type Notifier struct {
	messages []string
	mu       sync.Mutex
}

// Publish records message.
func (n *Notifier) Publish(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

// Messages returns everything published.
func (n *Notifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.messages)
}
