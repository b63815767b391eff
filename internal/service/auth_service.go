package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/softwarepar/softwarepar-backend/internal/models"
	"github.com/softwarepar/softwarepar-backend/internal/pkg/apperror"
	"github.com/softwarepar/softwarepar-backend/internal/repository"
	"github.com/softwarepar/softwarepar-backend/internal/validation"
)

// AuthRepository описывает зависимости AuthService от слоя хранилища.
type AuthRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
}

// ReferralLinker привязывает нового клиента к партнёру по реферальному коду.
type ReferralLinker interface {
	LinkReferral(ctx context.Context, referralCode string, clientID uuid.UUID) error
}

// AuthService инкапсулирует бизнес-логику регистрации и аутентификации.
type AuthService struct {
	repo     AuthRepository
	tokens   *TokenManager
	referral ReferralLinker
}

// RegisterInput содержит данные пользователя при регистрации.
type RegisterInput struct {
	Email          string
	Password       string
	FullName       string
	WhatsAppNumber string
	ReferralCode   string
}

// LoginInput содержит данные для входа.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult возвращает итог регистрации или авторизации.
type AuthResult struct {
	User      *models.User
	TokenPair *TokenPair
}

// NewAuthService создаёт сервис аутентификации. referral может быть nil,
// тогда реферальные коды при регистрации игнорируются.
func NewAuthService(repo AuthRepository, tokens *TokenManager, referral ReferralLinker) *AuthService {
	return &AuthService{
		repo:     repo,
		tokens:   tokens,
		referral: referral,
	}
}

// Register создаёт нового пользователя с ролью client.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("имя", in.FullName, validation.MinFullNameLength, validation.MaxFullNameLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.WhatsAppNumber != "" {
		if err := validation.ValidatePhoneE164(in.WhatsAppNumber); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
	}

	if _, err := s.repo.GetByEmail(ctx, strings.ToLower(in.Email)); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "email уже зарегистрирован")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(in.Email),
		PasswordHash: string(passHash),
		FullName:     strings.TrimSpace(in.FullName),
		Role:         models.RoleClient,
	}
	if in.WhatsAppNumber != "" {
		user.WhatsAppNumber = &in.WhatsAppNumber
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	// Реферальный код не должен ломать регистрацию: битый код просто
	// не привязывает партнёра.
	if in.ReferralCode != "" && s.referral != nil {
		if err := s.referral.LinkReferral(ctx, in.ReferralCode, user.ID); err != nil {
			if !errors.Is(err, repository.ErrPartnerNotFound) {
				return nil, err
			}
		}
	}

	return s.issueTokens(ctx, user, meta)
}

// Login проверяет учётные данные и выпускает токены.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, apperror.New(apperror.ErrCodeForbidden, "аккаунт деактивирован")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apperror.ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user, meta)
}

// Refresh обменивает refresh токен на новую пару.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta map[string]string) (*AuthResult, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	if _, err := s.repo.GetSessionByToken(ctx, refreshToken); err != nil {
		return nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.ErrUnauthorized
	}

	// Старая сессия закрывается: refresh токен одноразовый.
	if err := s.repo.DeleteSession(ctx, refreshToken); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user, meta)
}

// Logout закрывает сессию.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.DeleteSession(ctx, refreshToken)
}

// Me возвращает профиль текущего пользователя.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfileInput содержит изменяемые поля профиля.
type UpdateProfileInput struct {
	FullName       string
	WhatsAppNumber *string
}

// UpdateProfile обновляет имя и номер WhatsApp пользователя.
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, in UpdateProfileInput) (*models.User, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FullName != "" {
		if err := validation.ValidateLength("имя", in.FullName, validation.MinFullNameLength, validation.MaxFullNameLength); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		user.FullName = strings.TrimSpace(in.FullName)
	}
	if in.WhatsAppNumber != nil {
		if *in.WhatsAppNumber != "" {
			if err := validation.ValidatePhoneE164(*in.WhatsAppNumber); err != nil {
				return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
			}
			user.WhatsAppNumber = in.WhatsAppNumber
		} else {
			user.WhatsAppNumber = nil
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// ChangePassword меняет пароль после проверки текущего.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperror.ErrInvalidCredentials
	}

	if err := validation.ValidatePassword(newPassword); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth service: не удалось захешировать пароль: %w", err)
	}

	return s.repo.UpdatePassword(ctx, userID, string(passHash))
}

// issueTokens выпускает пару токенов и сохраняет сессию.
func (s *AuthService) issueTokens(ctx context.Context, user *models.User, meta map[string]string) (*AuthResult, error) {
	tokenPair, _, refreshExp, err := s.tokens.GeneratePair(user)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}

	if meta != nil {
		if ua, ok := meta["user_agent"]; ok {
			session.UserAgent = &ua
		}
		if ip, ok := meta["ip"]; ok {
			session.IPAddress = &ip
		}
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &AuthResult{User: user, TokenPair: tokenPair}, nil
}
