package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/settings"
	"github.com/trezcool/mahudhurio/core/staff"
	"github.com/trezcool/mahudhurio/core/student"
)

// roleStudent is the role reported for student logins; staff roles come
// from their profile.
const roleStudent = "student"

type authApi struct {
	studentSvc  student.ServiceInterface
	staffSvc    staff.ServiceInterface
	settingsSvc settings.ServiceInterface
	validate    *validator.Validate
}

func registerAuthAPI(
	g *echo.Group,
	studentSvc student.ServiceInterface,
	staffSvc staff.ServiceInterface,
	settingsSvc settings.ServiceInterface,
	validate *validator.Validate,
) {
	api := authApi{
		studentSvc:  studentSvc,
		staffSvc:    staffSvc,
		settingsSvc: settingsSvc,
		validate:    validate,
	}

	g.POST("/login", api.login)
}

// login resolves the identifier against students first, then staff. The
// login lock is checked after the credentials so exempt roles still get in.
func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()

	var (
		role    string
		profile interface{}
	)
	if stu, err := api.studentSvc.GetByIdentifier(reqCtx, data.Identifier); err == nil {
		if !stu.CheckPassword(data.Password) {
			return invalidCredentials()
		}
		role, profile = roleStudent, stu
	} else if errors.Cause(err) != student.ErrNotFound {
		return errors.Wrap(err, "finding student")
	} else {
		stf, err := api.staffSvc.GetByIdentifier(reqCtx, data.Identifier)
		if err != nil {
			if errors.Cause(err) == staff.ErrNotFound {
				return invalidCredentials()
			}
			return errors.Wrap(err, "finding staff member")
		}
		if !stf.CheckPassword(data.Password) {
			return invalidCredentials()
		}
		role, profile = stf.Role, stf
	}

	allowed, err := api.settingsSvc.AllowsLogin(reqCtx, role)
	if err != nil {
		return errors.Wrap(err, "checking login lock")
	}
	if !allowed {
		return errLoginLocked
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Role: role, Profile: profile})
}

func invalidCredentials() error {
	return core.NewValidationError(errors.New("invalid credentials"))
}

type (
	LoginRequest struct {
		Identifier string `json:"identifier" validate:"required"`
		Password   string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Role    string      `json:"role"`
		Profile interface{} `json:"profile"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Identifier = core.CleanString(lr.Identifier, true /* lower */)
	return validate.Struct(lr)
}
