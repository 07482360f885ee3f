package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/staff"
)

type staffApi struct {
	svc      staff.ServiceInterface
	validate *validator.Validate
}

func registerStaffAPI(g *echo.Group, svc staff.ServiceInterface, validate *validator.Validate) {
	api := staffApi{
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/staff")
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.DELETE("", api.destroyMultiple)
	sg.GET("/roles", api.queryRoles)

	dg := sg.Group("/:identifier")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *staffApi) create(ctx echo.Context) error {
	var data staff.NewStaff
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStaff")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stf, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == staff.ErrIdentifierExists {
			return identifierExistsError(errors.Cause(err))
		}
		return errors.Wrap(err, "creating staff member")
	}

	return ctx.JSON(http.StatusCreated, stf)
}

func (api *staffApi) query(ctx echo.Context) error {
	members, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying staff")
	}
	if members == nil {
		members = []staff.Staff{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *staffApi) retrieve(ctx echo.Context) error {
	stf, err := api.svc.GetByIdentifier(ctx.Request().Context(), ctx.Param("identifier"))
	if err != nil {
		if errors.Cause(err) == staff.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding staff member")
	}
	return ctx.JSON(http.StatusOK, stf)
}

func (api *staffApi) destroy(ctx echo.Context) error {
	if _, err := api.svc.GetByIdentifier(ctx.Request().Context(), ctx.Param("identifier")); err != nil {
		if errors.Cause(err) == staff.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding staff member")
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("identifier")); err != nil {
		return errors.Wrap(err, "deleting staff member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *staffApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.Identifiers == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.Identifiers...); err != nil {
		return errors.Wrap(err, "deleting staff")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *staffApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, staff.Roles)
}
