package identity

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeRepo struct {
	users map[string]User // keyed by uid
	err   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[string]User{}}
}

func (f *fakeRepo) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeRepo) CreateUser(ctx context.Context, user User) error {
	if f.err != nil {
		return f.err
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	f.users[user.UID] = user
	return nil
}

func (f *fakeRepo) FindUserByUsername(ctx context.Context, username string) (User, error) {
	if f.err != nil {
		return User{}, f.err
	}
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (f *fakeRepo) FindUserByUID(ctx context.Context, uid string) (User, error) {
	if f.err != nil {
		return User{}, f.err
	}
	u, ok := f.users[uid]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func newTestService(repo Repository) *Service {
	svc := NewService(repo, NewTokenManager("test-secret"))
	seq := 0
	svc.NewUID = func() string { seq++; return fmt.Sprintf("uid-%d", seq) }
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	reg, err := svc.Register(context.Background(), "Alice", "password123", "Alice Stock", "alice@example.com")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if reg.Username != "alice" || reg.DisplayName != "Alice Stock" || reg.Token == "" {
		t.Fatalf("unexpected register response: %+v", reg)
	}

	login, err := svc.Login(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if login.UID != reg.UID {
		t.Fatalf("login uid mismatch: %q vs %q", login.UID, reg.UID)
	}

	claims, err := svc.AuthToken.Parse(login.Token)
	if err != nil {
		t.Fatalf("token parse error: %v", err)
	}
	if claims.Subject != reg.UID || claims.DisplayName != "Alice Stock" || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService(newFakeRepo())

	if _, err := svc.Register(context.Background(), " ", "password123", "", ""); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "bob", "short", "", ""); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	if _, err := svc.Register(context.Background(), "alice", "password123", "", ""); err != nil {
		t.Fatalf("Register error: %v", err)
	}

	if _, err := svc.Login(context.Background(), "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLookupByUID(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	reg, err := svc.Register(context.Background(), "alice", "password123", "Alice Stock", "alice@example.com")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}

	actor, found, err := svc.LookupByUID(context.Background(), reg.UID)
	if err != nil || !found {
		t.Fatalf("LookupByUID: found=%v err=%v", found, err)
	}
	if actor.UID != reg.UID || actor.DisplayName != "Alice Stock" || actor.Email != "alice@example.com" {
		t.Fatalf("unexpected actor: %+v", actor)
	}

	_, found, err = svc.LookupByUID(context.Background(), "uid-missing")
	if err != nil || found {
		t.Fatalf("unknown uid must be (false, nil), got found=%v err=%v", found, err)
	}

	repo.err = errors.New("db down")
	if _, _, err := svc.LookupByUID(context.Background(), reg.UID); err == nil {
		t.Fatal("expected repository error to propagate")
	}
}
