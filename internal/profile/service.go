// Package profile はオンボーディングで選択されたロールと表示名を
// ユーザーメタデータとprofilesテーブルへ書き込む。
package profile

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/neurabot/neurabot/internal/metrics"
	"github.com/neurabot/neurabot/internal/model"
	"github.com/neurabot/neurabot/internal/repository"
)

// プロフィール書き込み失敗の段階ラベル。
const (
	stageMetadata = "metadata"
	stageUpsert   = "upsert"
	stageVerify   = "verify"
	stageRename   = "rename"
)

// SessionAccessor はプロフィール書き込みに必要なセッション操作のインターフェース。
type SessionAccessor interface {
	GetSession(ctx context.Context, token string) (*model.Session, error)
	UpdateUserMetadata(ctx context.Context, userID string, patch model.Metadata) (*model.User, error)
}

// Result はオンボーディング送信の結果。
// メタデータの更新は必ず成功しており、ProfileSyncedがfalseの場合は
// profilesテーブルへの反映だけが失敗している。
type Result struct {
	User          *model.User
	Profile       *model.Profile
	ProfileSynced bool
	Verified      bool
}

// Service はプロフィールの書き込みを提供する。
type Service struct {
	accessor SessionAccessor
	profiles repository.ProfileRepository
	metrics  metrics.MetricsCollector
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(accessor SessionAccessor, profiles repository.ProfileRepository, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{accessor: accessor, profiles: profiles, metrics: mc}
}

// Submit はオンボーディングフォームの送信を処理する。
//
// 検証に失敗した場合はI/Oを行わずに返す。セッションがない場合と
// メタデータ更新に失敗した場合は中断する。profilesへのupsertと
// その確認読み込みの失敗はログに残して処理を続ける。
func (s *Service) Submit(ctx context.Context, token string, in Input) (*Result, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		s.metrics.RecordOnboardingSubmission(metrics.OutcomeValidation)
		return nil, err
	}

	session, err := s.accessor.GetSession(ctx, token)
	if err != nil {
		slog.Warn("session lookup failed during onboarding", slog.String("error", err.Error()))
	}
	if session == nil {
		s.metrics.RecordOnboardingSubmission(metrics.OutcomeSessionExpired)
		return nil, model.NewSessionExpiredError()
	}
	log := slog.With(slog.String("user_id", session.UserID))

	user, err := s.accessor.UpdateUserMetadata(ctx, session.UserID, model.Metadata{
		model.MetadataSummaryMode: string(in.Role),
		model.MetadataUsername:    in.Name,
	})
	if err != nil {
		log.Error("failed to update user metadata", slog.String("error", err.Error()))
		s.metrics.RecordProfileWriteFailure(stageMetadata)
		s.metrics.RecordOnboardingSubmission(metrics.OutcomeMetadataFailed)
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, model.NewMetadataUpdateFailedError(err.Error())
	}

	result := &Result{User: user}

	saved, err := s.profiles.Upsert(ctx, &model.Profile{ID: session.UserID, FullName: in.Name, Role: in.Role})
	if err != nil {
		log.Error("failed to upsert profile, metadata remains authoritative", slog.String("error", err.Error()))
		s.metrics.RecordProfileWriteFailure(stageUpsert)
		s.metrics.RecordOnboardingSubmission(metrics.OutcomeProfileDegraded)
		return result, nil
	}
	result.Profile = saved
	result.ProfileSynced = true

	stored, err := s.profiles.FindByID(ctx, session.UserID)
	switch {
	case err != nil:
		log.Warn("failed to verify profile", slog.String("error", err.Error()))
		s.metrics.RecordProfileWriteFailure(stageVerify)
	case stored == nil || stored.FullName != in.Name || stored.Role != in.Role:
		log.Warn("profile verification mismatch")
		s.metrics.RecordProfileWriteFailure(stageVerify)
	default:
		result.Verified = true
		result.Profile = stored
	}

	log.Info("onboarding completed",
		slog.String("role", string(in.Role)),
		slog.Bool("verified", result.Verified),
	)
	s.metrics.RecordOnboardingSubmission(metrics.OutcomeSuccess)
	return result, nil
}

// SaveProfile はプロフィール保存APIのリクエストを処理する。
// 認証済みのユーザーIDに対してprofilesを単一のupsertで書き込む。
func (s *Service) SaveProfile(ctx context.Context, userID, fullName string, role model.Role) (*model.Profile, error) {
	fullName = strings.TrimSpace(fullName)
	if err := validateSaveRequest(fullName, role); err != nil {
		return nil, err
	}

	saved, err := s.profiles.Upsert(ctx, &model.Profile{ID: userID, FullName: fullName, Role: role})
	if err != nil {
		slog.Error("failed to save profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordProfileWriteFailure(stageUpsert)
		return nil, model.NewProfileSaveFailedError(err.Error())
	}
	return saved, nil
}

// Rename はダッシュボードからの表示名変更を処理する。
// メタデータのusernameを更新した後、profilesのfull_nameを更新する。どちらの失敗も中断する。
func (s *Service) Rename(ctx context.Context, token, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewInvalidNameError("Please enter your name")
	}

	session, err := s.accessor.GetSession(ctx, token)
	if err != nil {
		slog.Warn("session lookup failed during rename", slog.String("error", err.Error()))
	}
	if session == nil {
		return nil, model.NewSessionExpiredError()
	}

	user, err := s.accessor.UpdateUserMetadata(ctx, session.UserID, model.Metadata{model.MetadataUsername: name})
	if err != nil {
		s.metrics.RecordProfileWriteFailure(stageMetadata)
		return nil, model.NewMetadataUpdateFailedError(err.Error())
	}

	if _, err := s.profiles.UpdateFullName(ctx, session.UserID, name); err != nil {
		slog.Error("failed to update profile name",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordProfileWriteFailure(stageRename)
		return nil, model.NewProfileSaveFailedError(err.Error())
	}

	return user, nil
}
