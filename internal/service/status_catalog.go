package service

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func loadStatusCatalog(ctx context.Context, repos repository.Repositories) (*domain.StatusCatalog, error) {
	statuses, err := repos.Catalog().ListStatuses(ctx)
	if err != nil {
		return nil, err
	}
	return domain.NewStatusCatalog(statuses), nil
}

// ValidateStatusCatalog fails with CONFIGURATION_MISSING when a required status slug is absent.
func ValidateStatusCatalog(ctx context.Context, repos repository.Repositories) error {
	catalog, err := loadStatusCatalog(ctx, repos)
	if err != nil {
		return apperrors.MapError(err)
	}
	if err := catalog.Validate(); err != nil {
		return apperrors.NewConfigurationMissing(err.Error(), err)
	}
	return nil
}

func requireStatus(catalog *domain.StatusCatalog, slug string) (domain.TicketStatus, error) {
	st, ok := catalog.BySlug(slug)
	if !ok {
		err := &domain.MissingStatusError{Slugs: []string{slug}}
		return domain.TicketStatus{}, apperrors.NewConfigurationMissing(err.Error(), err)
	}
	return st, nil
}
