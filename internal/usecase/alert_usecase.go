package usecase

import (
	"context"
	"errors"
	"strings"

	"oysloe/internal/domain/entity"
	"oysloe/internal/domain/repository"
	apperrors "oysloe/pkg/errors"
)

type AlertUseCase struct {
	alertRepo repository.AlertRepository
	userRepo  repository.UserRepository
	hooks     *EventHooks
}

func NewAlertUseCase(alertRepo repository.AlertRepository, userRepo repository.UserRepository, hooks *EventHooks) *AlertUseCase {
	return &AlertUseCase{alertRepo: alertRepo, userRepo: userRepo, hooks: hooks}
}

type CreateAlertInput struct {
	UserID string
	Title  string
	Body   string
	Kind   string
}

// CreateAlert stores the alert and fires the alert hooks once it is durable.
func (uc *AlertUseCase) CreateAlert(ctx context.Context, input CreateAlertInput) (*entity.Alert, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, apperrors.InvalidRequest("title is required", nil)
	}
	if _, err := uc.userRepo.GetByID(ctx, input.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user", err)
		}
		return nil, apperrors.Internal("failed to look up user", err)
	}

	kind := input.Kind
	if kind == "" {
		kind = "general"
	}
	alert := &entity.Alert{
		UserID: input.UserID,
		Title:  input.Title,
		Body:   input.Body,
		Kind:   kind,
	}
	if err := uc.alertRepo.Create(ctx, alert); err != nil {
		return nil, apperrors.Internal("failed to create alert", err)
	}

	uc.hooks.emitAlertCreated(ctx, AlertCreatedEvent{Alert: alert})
	return alert, nil
}

func (uc *AlertUseCase) List(ctx context.Context, userID string, limit, offset int) ([]*entity.Alert, int64, error) {
	alerts, total, err := uc.alertRepo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list alerts", err)
	}
	if alerts == nil {
		alerts = []*entity.Alert{}
	}
	return alerts, total, nil
}

func (uc *AlertUseCase) MarkRead(ctx context.Context, userID string, id int64) error {
	return uc.mapOwned(uc.alertRepo.MarkRead(ctx, userID, id), "failed to mark alert read")
}

func (uc *AlertUseCase) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := uc.alertRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("failed to mark alerts read", err)
	}
	return n, nil
}

func (uc *AlertUseCase) Delete(ctx context.Context, userID string, id int64) error {
	return uc.mapOwned(uc.alertRepo.Delete(ctx, userID, id), "failed to delete alert")
}

// Alerts owned by someone else look absent.
func (uc *AlertUseCase) mapOwned(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NotFound("alert", err)
	default:
		return apperrors.Internal(msg, err)
	}
}
