package library

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"library-catalog/logger"
)

// SessionRefresher is told about changes to a user's wishlist or borrow list
// so the logged-in session stays in step with persisted state. Calls for
// users other than the current one are ignored.
type SessionRefresher interface {
	RefreshCurrentUser(ctx context.Context, userID string, update func(u *User)) error
}

// AdminSeed is the account created when no users exist yet.
type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

// Accounts owns the user collection and the current session.
type Accounts struct {
	mu      sync.Mutex
	store   Store
	log     logger.Logger
	users   []User
	current *User

	now      func() time.Time
	newID    func() string
	hashCost int
}

var _ SessionRefresher = (*Accounts)(nil)

func NewAccounts(ctx context.Context, st Store, log logger.Logger, admin AdminSeed) (*Accounts, error) {
	a := &Accounts{
		store:    st,
		log:      log.WithFields(map[string]interface{}{"component": "accounts"}),
		now:      time.Now,
		newID:    uuid.NewString,
		hashCost: bcrypt.DefaultCost,
	}
	return a, a.hydrate(ctx, admin)
}

func (a *Accounts) hydrate(ctx context.Context, admin AdminSeed) error {
	if _, err := loadJSON(ctx, a.store, KeyUsers, &a.users); err != nil {
		return fail("load users", err)
	}
	var session User
	ok, err := loadJSON(ctx, a.store, KeyCurrentUser, &session)
	if err != nil {
		return fail("load session", err)
	}
	if ok && session.ID != "" {
		a.current = &session
	}

	if len(a.users) > 0 || admin.Email == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), a.hashCost)
	if err != nil {
		return fail("seed admin", err)
	}
	name := admin.Name
	if name == "" {
		name = "Admin User"
	}
	users := []User{{
		ID:           "1",
		Name:         name,
		Email:        admin.Email,
		PasswordHash: string(hash),
		Role:         RoleAdmin,
		CreatedAt:    a.now(),
		Wishlist:     []string{},
	}}
	if err := a.persist(ctx, users, nil); err != nil {
		return fail("seed admin", err)
	}
	a.users = users
	a.log.Info("admin account seeded", map[string]interface{}{"email": admin.Email})
	return nil
}

// persist writes users and, when session is non-nil, the session snapshot in
// the same store call.
func (a *Accounts) persist(ctx context.Context, users []User, session *User) error {
	entries := make([]Entry, 0, 2)
	e, err := encode(KeyUsers, users)
	if err != nil {
		return err
	}
	entries = append(entries, e)
	if session != nil {
		s, err := encode(KeyCurrentUser, session)
		if err != nil {
			return err
		}
		entries = append(entries, s)
	}
	if err := a.store.SetMany(ctx, entries...); err != nil {
		a.log.Error("persist users", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func (a *Accounts) indexOf(id string) int {
	return slices.IndexFunc(a.users, func(u User) bool { return u.ID == id })
}

func (a *Accounts) indexOfEmail(email string) int {
	return slices.IndexFunc(a.users, func(u User) bool { return strings.EqualFold(u.Email, email) })
}

// sessionOf builds the session snapshot for u, keeping derived fields of the
// current session.
func (a *Accounts) sessionOf(u User) *User {
	s := cloneUser(u)
	s.PasswordHash = ""
	if a.current != nil && a.current.ID == u.ID {
		s.BorrowedBooks = slices.Clone(a.current.BorrowedBooks)
	}
	return &s
}

// ------------------ Registration & sessions ------------------

func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := validateInput(in); err != nil {
		return nil, fail("register", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.indexOfEmail(in.Email) >= 0 {
		return nil, fail("register", ErrEmailTaken)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.hashCost)
	if err != nil {
		return nil, fail("register", err)
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}
	u := User{
		ID:           a.newID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    a.now(),
		Wishlist:     []string{},
	}
	users := append(slices.Clip(a.users), u)
	if err := a.persist(ctx, users, nil); err != nil {
		return nil, fail("register", err)
	}
	a.users = users

	a.log.Info("user registered", map[string]interface{}{"user_id": u.ID, "role": string(u.Role)})
	out := cloneUser(u)
	return &out, nil
}

// Login checks the credentials and makes the user the current session.
func (a *Accounts) Login(ctx context.Context, email, password string) (*User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.indexOfEmail(email)
	if i < 0 {
		return nil, fail("login", ErrInvalidCredentials)
	}
	u := a.users[i]
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		a.log.Warn("login rejected", map[string]interface{}{"email": email})
		return nil, fail("login", ErrInvalidCredentials)
	}

	session := a.sessionOf(u)
	entry, err := encode(KeyCurrentUser, session)
	if err != nil {
		return nil, fail("login", err)
	}
	if err := a.store.Set(ctx, entry.Key, entry.Value); err != nil {
		return nil, fail("login", err)
	}
	a.current = session

	a.log.Info("user logged in", map[string]interface{}{"user_id": u.ID})
	out := cloneUser(*session)
	return &out, nil
}

func (a *Accounts) Logout(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.store.Delete(ctx, KeyCurrentUser); err != nil {
		return fail("logout", err)
	}
	a.current = nil
	return nil
}

// CurrentUser returns a copy of the session user, or nil when logged out.
func (a *Accounts) CurrentUser() *User {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	u := cloneUser(*a.current)
	return &u
}

// RequireAdmin is the role-flag check guarding administrative actions.
func (a *Accounts) RequireAdmin() error {
	u := a.CurrentUser()
	if u == nil {
		return ErrNotLoggedIn
	}
	if !u.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (a *Accounts) RefreshCurrentUser(ctx context.Context, userID string, update func(u *User)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil || a.current.ID != userID {
		return nil
	}
	session := cloneUser(*a.current)
	update(&session)
	entry, err := encode(KeyCurrentUser, session)
	if err != nil {
		return fail("refresh session", err)
	}
	if err := a.store.Set(ctx, entry.Key, entry.Value); err != nil {
		return fail("refresh session", err)
	}
	a.current = &session
	return nil
}

// ------------------ Users ------------------

func (a *Accounts) Get(id string) (*User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.indexOf(id)
	if i < 0 {
		return nil, fail("get user", ErrUserNotFound)
	}
	u := cloneUser(a.users[i])
	return &u, nil
}

// ListUsers returns the non-admin accounts in registration order.
func (a *Accounts) ListUsers() []User {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []User
	for _, u := range a.users {
		if u.Role != RoleAdmin {
			out = append(out, cloneUser(u))
		}
	}
	return out
}

func (a *Accounts) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (*User, error) {
	if err := validateInput(patch); err != nil {
		return nil, fail("update profile", err)
	}
	u, err := a.updateUser(ctx, id, func(u *User) error {
		if patch.Email != nil && !strings.EqualFold(*patch.Email, u.Email) && a.indexOfEmail(*patch.Email) >= 0 {
			return ErrEmailTaken
		}
		if patch.Name != nil {
			u.Name = *patch.Name
		}
		if patch.Email != nil {
			u.Email = *patch.Email
		}
		return nil
	})
	if err != nil {
		return nil, fail("update profile", err)
	}
	return u, nil
}

// updateUser applies fn to a copy of user id and writes the user collection.
// When id is the session user the session snapshot is rewritten in the same
// store call.
func (a *Accounts) updateUser(ctx context.Context, id string, fn func(u *User) error) (*User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i := a.indexOf(id)
	if i < 0 {
		return nil, ErrUserNotFound
	}
	u := cloneUser(a.users[i])
	if err := fn(&u); err != nil {
		return nil, err
	}

	users := slices.Clone(a.users)
	users[i] = u
	var session *User
	if a.current != nil && a.current.ID == id {
		session = a.sessionOf(u)
	}
	if err := a.persist(ctx, users, session); err != nil {
		return nil, err
	}
	a.users = users
	if session != nil {
		a.current = session
	}

	out := cloneUser(u)
	return &out, nil
}
