package settings

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var nowFunc = time.Now // mockable

type (
	Repository interface {
		// GetSettings returns the record, creating the unlocked default on
		// first read.
		GetSettings(ctx context.Context) (Settings, error)
		// SaveSettings replaces the record wholesale.
		SaveSettings(ctx context.Context, s Settings) error
	}

	ServiceInterface interface {
		Get(ctx context.Context) (Settings, error)
		SetLoginLock(ctx context.Context, locked bool) (Settings, error)
		AllowsLogin(ctx context.Context, role string) (bool, error)
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

func (svc *Service) Get(ctx context.Context) (Settings, error) {
	return svc.repo.GetSettings(ctx)
}

func (svc *Service) SetLoginLock(ctx context.Context, locked bool) (Settings, error) {
	s := Settings{
		LoginLocked: locked,
		UpdatedAt:   nowFunc(),
	}
	if err := svc.repo.SaveSettings(ctx, s); err != nil {
		return Settings{}, errors.Wrap(err, "saving settings")
	}
	return s, nil
}

// AllowsLogin reports whether a login for the role may proceed. Roles on
// the configured exemption list pass even while the login lock is on.
func (svc *Service) AllowsLogin(ctx context.Context, role string) (bool, error) {
	s, err := svc.repo.GetSettings(ctx)
	if err != nil {
		return false, err
	}
	if !s.LoginLocked {
		return true, nil
	}
	for _, exempt := range svc.conf.LoginLockExempt {
		if strings.EqualFold(exempt, role) {
			return true, nil
		}
	}
	return false, nil
}
