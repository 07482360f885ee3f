package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/settings"
)

type settingsApi struct {
	svc      settings.ServiceInterface
	validate *validator.Validate
}

func registerSettingsAPI(g *echo.Group, svc settings.ServiceInterface, validate *validator.Validate) {
	api := settingsApi{
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/settings")
	sg.GET("", api.retrieve)
	sg.PUT("", api.update)
}

// Handlers

func (api *settingsApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "finding settings")
	}
	return ctx.JSON(http.StatusOK, s)
}

// update replaces the settings record wholesale; partial updates are not
// a thing here.
func (api *settingsApi) update(ctx echo.Context) error {
	var data settings.UpdateSettings
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSettings")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	s, err := api.svc.SetLoginLock(ctx.Request().Context(), *data.LoginLocked)
	if err != nil {
		return errors.Wrap(err, "updating settings")
	}
	return ctx.JSON(http.StatusOK, s)
}
