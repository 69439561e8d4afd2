// Package auth はOAuth認証フロー、セッション管理、認証状態の通知を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/neurabot/neurabot/internal/model"
	"github.com/neurabot/neurabot/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はセッションの取得、ユーザーメタデータの更新、サインアウトを提供する。
// 認証状態が変化するとSubscribeで登録されたリスナーに通知する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	tokens      *TokenIssuer
	notifier    *Notifier
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	tokens *TokenIssuer,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		notifier:    NewNotifier(),
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、アクセストークン付きのセッションを発行する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成し、
// IdPの氏名とアバターをメタデータの初期値にする。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string
	if identity != nil {
		userID = identity.UserID
		s.refreshIdPMetadata(ctx, userID, userInfo)
		slog.Info("existing user logged in",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		now := time.Now()
		newUser := &model.User{
			ID:        uuid.New().String(),
			Email:     userInfo.Email,
			Metadata:  idpMetadata(userInfo),
			CreatedAt: now,
			UpdatedAt: now,
		}
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         newUser.ID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}
		if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}

		userID = newUser.ID
		slog.Info("new user created",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.notifier.Publish(Event{Type: EventSignedIn, UserID: userID, SessionID: session.ID})
	return session, nil
}

// GetSession はアクセストークンに対応する有効なセッションを返す。
// トークンが空・不正・期限切れ、またはセッションが破棄済みの場合はnilを返す。
// エラーはストレージ障害の場合のみ返す。
func (s *Service) GetSession(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		slog.Debug("access token rejected", slog.String("error", err.Error()))
		return nil, nil
	}

	session, err := s.sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.UserID != claims.Subject {
		return nil, nil
	}

	session.AccessToken = token
	return session, nil
}

// GetUser はアクセストークンに対応するユーザーを返す。
// セッションまたはユーザーが存在しない場合はnilを返す。
func (s *Service) GetUser(ctx context.Context, token string) (*model.User, error) {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// UpdateUserMetadata はpatchのキーをユーザーメタデータに浅くマージする。
// patchにないキーは保持される。
func (s *Service) UpdateUserMetadata(ctx context.Context, userID string, patch model.Metadata) (*model.User, error) {
	user, err := s.userRepo.MergeMetadata(ctx, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update user metadata: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	s.notifier.Publish(Event{Type: EventUserUpdated, UserID: userID, User: user})
	return user, nil
}

// IncrementMetadataCounter はメタデータの数値キーを1加算する。
func (s *Service) IncrementMetadataCounter(ctx context.Context, userID, key string) (*model.User, error) {
	user, err := s.userRepo.IncrementMetadataCounter(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to increment metadata counter: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	s.notifier.Publish(Event{Type: EventUserUpdated, UserID: userID, User: user})
	return user, nil
}

// SignOut はアクセストークンのセッションを破棄する。
// 既に無効なトークンの場合は何もしない。
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil
		}
		return err
	}

	if err := s.sessionRepo.DeleteByID(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user signed out", slog.String("user_id", claims.Subject))
	s.notifier.Publish(Event{Type: EventSignedOut, UserID: claims.Subject, SessionID: claims.SessionID})
	return nil
}

// SignOutEverywhere はユーザーの全セッションを破棄する。
func (s *Service) SignOutEverywhere(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}

	slog.Info("user signed out from all sessions", slog.String("user_id", userID))
	s.notifier.Publish(Event{Type: EventSignedOut, UserID: userID})
	return nil
}

// Subscribe は認証状態の遷移を受け取るリスナーを登録し、解除関数を返す。
func (s *Service) Subscribe(fn Listener) func() {
	return s.notifier.Subscribe(fn)
}

// refreshIdPMetadata は既存ユーザーのIdP由来のメタデータを最新化する。
// 失敗してもログインは継続する。
func (s *Service) refreshIdPMetadata(ctx context.Context, userID string, info *OAuthUserInfo) {
	patch := idpMetadata(info)
	if len(patch) == 0 {
		return
	}
	if _, err := s.userRepo.MergeMetadata(ctx, userID, patch); err != nil {
		slog.Warn("failed to refresh idp metadata",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func idpMetadata(info *OAuthUserInfo) model.Metadata {
	m := model.Metadata{}
	if info.Name != "" {
		m[model.MetadataFullName] = info.Name
	}
	if info.AvatarURL != "" {
		m[model.MetadataAvatarURL] = info.AvatarURL
	}
	return m
}

// createSession はセッションを作成し永続化して、アクセストークンを付与する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	session.AccessToken, err = s.tokens.Issue(session)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
