package staff

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	ErrNotFound         = errors.New("staff member not found")
	ErrIdentifierExists = errors.New("a staff member with this identifier already exists")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckIdentifierUniqueness(ctx context.Context, identifier string) error
		CreateStaff(ctx context.Context, stf Staff) (Staff, error)
		UpdateOrCreateStaff(ctx context.Context, stf Staff) (Staff, error)
		QueryAllStaff(ctx context.Context) ([]Staff, error)
		GetStaff(ctx context.Context, identifier string) (Staff, error)
		DeleteStaff(ctx context.Context, identifiers ...string) error
	}

	ServiceInterface interface {
		CheckUniqueness(ctx context.Context, identifier string) error
		Create(ctx context.Context, data NewStaff) (Staff, error)
		Query(ctx context.Context) ([]Staff, error)
		GetByIdentifier(ctx context.Context, identifier string) (Staff, error)
		Delete(ctx context.Context, identifiers ...string) error
	}

	Service struct {
		repo Repository
		conf *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{
		repo: repo,
		conf: conf,
	}
}

func (svc *Service) CheckUniqueness(ctx context.Context, identifier string) error {
	return svc.repo.CheckIdentifierUniqueness(ctx, core.CleanString(identifier, true /* lower */))
}

func (svc *Service) Create(ctx context.Context, data NewStaff) (Staff, error) {
	if err := svc.CheckUniqueness(ctx, data.Identifier); err != nil {
		return Staff{}, err
	}

	stf := Staff{
		Identifier: data.Identifier,
		Name:       data.Name,
		Email:      data.Email,
		Role:       data.Role,
		Password:   data.Password,
		CreatedAt:  nowFunc(),
	}
	stf, err := svc.repo.CreateStaff(ctx, stf)
	if err != nil {
		return Staff{}, errors.Wrap(err, "creating staff member")
	}
	return stf, nil
}

func (svc *Service) Query(ctx context.Context) ([]Staff, error) {
	return svc.repo.QueryAllStaff(ctx)
}

func (svc *Service) GetByIdentifier(ctx context.Context, identifier string) (Staff, error) {
	return svc.repo.GetStaff(ctx, core.CleanString(identifier, true /* lower */))
}

func (svc *Service) Delete(ctx context.Context, identifiers ...string) error {
	for i, identifier := range identifiers {
		identifiers[i] = core.CleanString(identifier, true /* lower */)
	}
	return svc.repo.DeleteStaff(ctx, identifiers...)
}
