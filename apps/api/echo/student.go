package echoapi

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/student"
)

type studentApi struct {
	svc        student.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
}

func registerStudentAPI(
	g *echo.Group,
	svc student.ServiceInterface,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := studentApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	sg := g.Group("/students")
	sg.POST("", api.register)
	sg.GET("", api.query)
	sg.DELETE("", api.destroyMultiple)
	sg.POST("/import", api.importCSV)

	dg := sg.Group("/:identifier")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.POST("/device-reset", api.deviceReset)
}

// Handlers

func (api *studentApi) register(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stu, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == student.ErrIdentifierExists {
			return identifierExistsError(errors.Cause(err))
		}
		return errors.Wrap(err, "registering student")
	}

	return ctx.JSON(http.StatusCreated, stu)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	stu, err := api.svc.GetByIdentifier(ctx.Request().Context(), ctx.Param("identifier"))
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding student")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stu, err := api.svc.Update(ctx.Request().Context(), ctx.Param("identifier"), data)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	if _, err := api.svc.GetByIdentifier(ctx.Request().Context(), ctx.Param("identifier")); err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding student")
	}
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("identifier")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.Identifiers == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.Identifiers...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// deviceReset unbinds the student's device; their next check-in claims a
// new one.
func (api *studentApi) deviceReset(ctx echo.Context) error {
	stu, err := api.svc.ResetDevice(ctx.Request().Context(), ctx.Param("identifier"))
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "resetting device")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *studentApi) importCSV(ctx echo.Context) error {
	file, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a CSV file is required"})
	}
	src, err := file.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer func() { _ = src.Close() }()

	resp, err := api.importStudents(ctx.Request().Context(), src)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, resp)
}

// importStudents registers students in bulk from a CSV with a header row:
// identifier,name,email,department,section,password. Rows that fail keep
// their line number in the report; the rest are registered.
func (api *studentApi) importStudents(reqCtx context.Context, r io.Reader) (ImportResponse, error) {
	resp := ImportResponse{Errors: make(map[int]string)}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	if _, err := cr.Read(); err != nil { // header
		if err == io.EOF {
			return resp, nil
		}
		return resp, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "invalid CSV file"})
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			resp.Errors[line] = "invalid CSV row"
			continue
		}
		if len(record) < 6 {
			resp.Errors[line] = "expected 6 columns: identifier,name,email,department,section,password"
			continue
		}

		data := student.NewStudent{
			Identifier: record[0],
			Name:       record[1],
			Email:      record[2],
			Department: record[3],
			Section:    record[4],
			Password:   record[5],
		}
		if err := data.Validate(api.validate); err != nil {
			resp.Errors[line] = api.flattenValidationError(err)
			continue
		}
		if _, err := api.svc.Register(reqCtx, data); err != nil {
			if errors.Cause(err) == student.ErrIdentifierExists {
				resp.Errors[line] = errors.Cause(err).Error()
				continue
			}
			return resp, errors.Wrap(err, "registering student")
		}
		resp.Created++
	}

	if len(resp.Errors) == 0 {
		resp.Errors = nil
	}
	return resp, nil
}

func (api *studentApi) flattenValidationError(err error) string {
	switch vErr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		parts := make([]string, 0, len(vErr))
		for _, fErr := range vErr {
			parts = append(parts, fmt.Sprintf("%s: %s", fErr.Field(), fErr.Translate(api.translator)))
		}
		return strings.Join(parts, "; ")
	case *core.ValidationError:
		return vErr.Error()
	}
	return err.Error()
}

type (
	DestroyMultipleRequest struct {
		Identifiers []string `query:"id"`
	}

	ImportResponse struct {
		Created int            `json:"created"`
		Errors  map[int]string `json:"errors,omitempty"`
	}
)
