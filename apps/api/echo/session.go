package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/session"
)

type sessionApi struct {
	svc      session.ServiceInterface
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, svc session.ServiceInterface, validate *validator.Validate) {
	api := sessionApi{
		svc:      svc,
		validate: validate,
	}

	sg := g.Group("/sessions")
	sg.POST("", api.open)
	sg.GET("", api.query)

	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.POST("/close", api.close)
	dg.GET("/roster", api.roster)
	dg.GET("/roster.csv", api.rosterCSV)
	dg.POST("/attendance", api.markAttendance)
}

// Handlers

func (api *sessionApi) open(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Open(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == session.ErrUnknownIssuer {
			return core.NewValidationError(nil, core.FieldError{Field: "issuer", Error: errors.Cause(err).Error()})
		}
		return errors.Wrap(err, "opening session")
	}

	sessionOpenedCounter.Inc()
	return ctx.JSON(http.StatusCreated, newSessionResponse(sess))
}

func (api *sessionApi) query(ctx echo.Context) error {
	filter := new(session.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []SessionResponse{})
	}
	filter.Clean()

	sessions, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}

	resp := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		resp = append(resp, newSessionResponse(sess))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

// close deactivates the session; closing a closed session changes nothing.
func (api *sessionApi) close(ctx echo.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}

	sess, err := api.svc.Close(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "closing session")
	}

	sessionClosedCounter.Inc()
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *sessionApi) roster(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess.Entries)
}

func (api *sessionApi) rosterCSV(ctx echo.Context) error {
	sess, err := api.getSession(ctx)
	if err != nil {
		return err
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="attendance-%s.csv"`, sess.ID))
	ctx.Response().Header().Set(echo.HeaderContentType, "text/csv")
	ctx.Response().WriteHeader(http.StatusOK)
	return session.WriteRosterCSV(ctx.Response(), sess.Entries)
}

func (api *sessionApi) markAttendance(ctx echo.Context) error {
	id, parseErr := uuid.Parse(ctx.Param("id"))
	if parseErr != nil {
		httpErr, result := admissionHTTPError(session.ErrNotActive)
		observeCheckIn(result)
		return httpErr
	}

	var data session.CheckIn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckIn")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.MarkAttendance(ctx.Request().Context(), id, data)
	if err != nil {
		if httpErr, result := admissionHTTPError(err); httpErr != nil {
			observeCheckIn(result)
			return httpErr
		}
		return errors.Wrap(err, "marking attendance")
	}

	observeCheckIn("admitted")
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *sessionApi) getSession(ctx echo.Context) (session.Session, error) {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return session.Session{}, errHttpNotFound
	}

	sess, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return session.Session{}, errHttpNotFound
		}
		return session.Session{}, errors.Wrap(err, "finding session")
	}
	return sess, nil
}

// SessionResponse decorates a session with its attendee count; the full
// roster stays behind the roster endpoints.
type SessionResponse struct {
	session.Session
	Attendees int `json:"attendees"`
}

func newSessionResponse(sess session.Session) SessionResponse {
	return SessionResponse{Session: sess, Attendees: sess.AttendeeCount()}
}
