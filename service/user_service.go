package service

import (
	"errors"

	"github.com/andersonmia/nbr/model"
	"github.com/andersonmia/nbr/repository"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// UserService handles user-related business logic.
type UserService struct {
	userRepo repository.IUserRepository
	audit    *AuditTrail
}

func NewUserService(userRepo repository.IUserRepository, audit *AuditTrail) *UserService {
	return &UserService{userRepo: userRepo, audit: audit}
}

// Register creates a new user with a hashed password.
func (s *UserService) Register(req model.RegisterRequest) (*model.User, error) {
	hashedPassword, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hashedPassword,
	}

	if err := s.userRepo.CreateUser(user); err != nil {
		s.audit.Record("REGISTER_FAILED", "Could not create user with email: "+req.Email)
		return nil, err
	}

	s.audit.Record("REGISTER", "Created user with email: "+req.Email)
	user.Password = ""
	return user, nil
}

// Login verifies credentials and issues a signed token.
func (s *UserService) Login(req model.LoginRequest) (string, error) {
	user, err := s.userRepo.GetUserByEmail(req.Email)
	if err != nil {
		s.audit.Record("LOGIN_FAILED", "User not found with email: "+req.Email)
		return "", ErrInvalidCredentials
	}

	if !CheckPasswordHash(req.Password, user.Password) {
		s.audit.Record("LOGIN_FAILED", "Wrong password for email: "+req.Email)
		return "", ErrInvalidCredentials
	}

	token, err := GenerateJWT(user)
	if err != nil {
		return "", err
	}

	s.audit.Record("LOGIN", "User logged in with email: "+req.Email)
	return token, nil
}

// UpdateUserRole validates the role and calls the repository to update it.
func (s *UserService) UpdateUserRole(userID int, newRole model.Role) error {
	if newRole != model.RoleAdmin && newRole != model.RoleUser {
		return errors.New("invalid role specified")
	}

	return s.userRepo.UpdateUserRole(userID, string(newRole))
}
