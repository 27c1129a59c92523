package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	req := RegisterRequest{
		Email:       "mina@example.com",
		Password:    "supersafe",
		DisplayName: "Mina Operator",
	}

	ctx := context.Background()
	op, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if op.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, op.Email)
	}
	if op.Role != RoleOperator {
		t.Fatalf("register: expected default role %s got %s", RoleOperator, op.Role)
	}
	if strings.Contains(op.PasswordHash, req.Password) {
		t.Fatal("password must not be stored in the clear")
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}

	id, role, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify: unexpected error: %v", err)
	}
	if id != op.ID || role != RoleOperator {
		t.Fatalf("verify: expected (%s, %s), got (%s, %s)", op.ID, RoleOperator, id, role)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "short", DisplayName: "A"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterRequest{Password: "longenough", DisplayName: "A"}); err == nil {
		t.Fatal("expected error for missing email")
	}
	if _, err := svc.Register(ctx, RegisterRequest{Email: "a@b.c", Password: "longenough", DisplayName: "A", Role: "superuser"}); err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)
	ctx := context.Background()

	req := RegisterRequest{Email: "dup@example.com", Password: "supersafe", DisplayName: "Dup"}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginFailures(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)
	ctx := context.Background()

	if _, err := svc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "whatever1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	if _, err := svc.Register(ctx, RegisterRequest{Email: "real@example.com", Password: "supersafe", DisplayName: "Real"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: "real@example.com", Password: "wrongpass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
}

func TestService_VerifyToken_WrongSecret(t *testing.T) {
	repo := newFakeRepository()
	issuer := NewService(repo, "secret-a", time.Hour)
	verifier := NewService(repo, "secret-b", time.Hour)
	ctx := context.Background()

	if _, err := issuer.Register(ctx, RegisterRequest{Email: "x@example.com", Password: "supersafe", DisplayName: "X"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	resp, err := issuer.Login(ctx, LoginRequest{Email: "x@example.com", Password: "supersafe"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, _, err := verifier.VerifyToken(resp.Token); err == nil {
		t.Fatal("expected verification to fail with a different secret")
	}
}

// fakeRepository is an in-memory Repository for unit tests.
type fakeRepository struct {
	byEmail map[string]Operator
	byID    map[string]Operator
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		byEmail: make(map[string]Operator),
		byID:    make(map[string]Operator),
	}
}

func (f *fakeRepository) CreateOperator(_ context.Context, params CreateOperatorParams) (Operator, error) {
	if _, ok := f.byEmail[params.Email]; ok {
		return Operator{}, ErrDuplicateEmail
	}
	op := Operator{
		ID:           uuid.NewString(),
		Email:        params.Email,
		DisplayName:  params.DisplayName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    time.Now().UTC(),
	}
	f.byEmail[op.Email] = op
	f.byID[op.ID] = op
	return op, nil
}

func (f *fakeRepository) GetOperatorByEmail(_ context.Context, email string) (Operator, error) {
	op, ok := f.byEmail[email]
	if !ok {
		return Operator{}, ErrOperatorNotFound
	}
	return op, nil
}

func (f *fakeRepository) GetOperatorByID(_ context.Context, id string) (Operator, error) {
	op, ok := f.byID[id]
	if !ok {
		return Operator{}, fmt.Errorf("%w: %s", ErrOperatorNotFound, id)
	}
	return op, nil
}
