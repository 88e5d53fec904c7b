package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"coffer/internal/codec"
	"coffer/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type signupRequest struct {
	Username string `json:"username" cbor:"username"`
	Email    string `json:"email" cbor:"email"`
	Password string `json:"password" cbor:"password"`
}

type loginRequest struct {
	Username string `json:"username" cbor:"username"`
	Password string `json:"password" cbor:"password"`
}

type authResponse struct {
	Token string       `json:"token" cbor:"token"`
	User  *models.User `json:"user" cbor:"user"`
}

// Signup handles POST /api/v1/authentication/signup/
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := decodeBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return models.RespondWithError(c,
			models.NewValidationError("username, email, and password are required"))
	}
	if len(req.Username) > 150 || strings.ContainsAny(req.Username, " \t\n") {
		return models.RespondWithError(c,
			models.NewValidationError("invalid username"))
	}
	if len(req.Password) < 8 {
		return models.RespondWithError(c,
			models.NewValidationError("password must be at least 8 characters"))
	}

	// Username collisions surface as a conflict, not an internal error
	if existing, err := s.userRepo.GetByUsername(c.Context(), req.Username); err == nil && existing != nil {
		return models.RespondWithError(c,
			models.NewConflictError("user already exists"))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashed),
	}
	if err := s.userRepo.Create(c.Context(), user); err != nil {
		return models.RespondWithError(c, err)
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}

	return codec.Respond(c, fiber.StatusCreated, authResponse{Token: token, User: user})
}

// Login handles POST /api/v1/authentication/login/
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := decodeBody(c, &req); err != nil {
		return models.RespondWithError(c, err)
	}
	if req.Username == "" || req.Password == "" {
		return models.RespondWithError(c,
			models.NewValidationError("username and password are required"))
	}

	user, err := s.userRepo.GetByUsername(c.Context(), req.Username)
	if err != nil {
		// Same answer for unknown user and bad password
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == "not_found" {
			return models.RespondWithError(c,
				models.NewUnauthorizedError("invalid credentials"))
		}
		return models.RespondWithError(c, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return models.RespondWithError(c,
			models.NewUnauthorizedError("invalid credentials"))
	}

	token, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.RespondWithError(c, models.NewInternalError(err))
	}

	return codec.Respond(c, fiber.StatusOK, authResponse{Token: token, User: user})
}

// generateToken mints an HS256 JWT whose subject is the user ID.
func (s *Server) generateToken(userID uint, username string) (string, error) {
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(72 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}
