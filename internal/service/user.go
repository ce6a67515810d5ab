package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/funkostack/funkostore/internal/domain"
)

type SignupInput struct {
	Username string `validate:"required,min=3,max=64"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
}

// UserService handles signup, signin and soft deletion. Passwords are
// stored only as bcrypt hashes.
type UserService struct {
	repo     UserRepository
	validate *validator.Validate
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, validate: validator.New()}
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*domain.User, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, Invalidf(err, "invalid signup")
	}

	if existing, err := s.repo.GetByUsername(ctx, in.Username); err != nil {
		return nil, Internalf(err, "query username %q", in.Username)
	} else if existing != nil {
		return nil, Conflictf("username %q is taken", in.Username)
	}

	if existing, err := s.repo.GetByEmail(ctx, in.Email); err != nil {
		return nil, Internalf(err, "query email %q", in.Email)
	} else if existing != nil {
		return nil, Conflictf("email %q is taken", in.Email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Internalf(err, "hash password")
	}

	now := time.Now()
	user := &domain.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hash),
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, Internalf(err, "create user")
	}
	return user, nil
}

// Signin verifies the credentials and returns the profile. Wrong username
// and wrong password are indistinguishable to the caller.
func (s *UserService) Signin(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, Internalf(err, "query username %q", username)
	}
	if user == nil {
		return nil, Unauthorizedf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, Unauthorizedf("invalid credentials")
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, Internalf(err, "query user %d", id)
	}
	if user == nil {
		return nil, NotFoundf("user %d not found", id)
	}
	return user, nil
}

// Delete soft-deletes: the row stays but drops out of default queries.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Internalf(err, "query user %d", id)
	}
	if user == nil {
		return NotFoundf("user %d not found", id)
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return Internalf(err, "delete user %d", id)
	}
	return nil
}
