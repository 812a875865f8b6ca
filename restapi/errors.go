package restapi

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-presence/pkg/types"
)

const (
	textCodeBadFilter       = "PRESENCE_FILTER_INVALID"
	textCodeBadBody         = "PRESENCE_BODY_INVALID"
	textCodeUnknownTable    = "PRESENCE_TABLE_UNKNOWN"
	textCodeAPIKey          = "PRESENCE_API_KEY_INVALID"
	textCodeTokenMissing    = "PRESENCE_TOKEN_MISSING"
	textCodeTokenInvalid    = "PRESENCE_TOKEN_INVALID"
	textCodeWriteForbidden  = "PRESENCE_WRITE_FORBIDDEN"
	textCodeTrackingOff     = "PRESENCE_TRACKING_DISABLED"
	textCodeNotFound        = "PRESENCE_NOT_FOUND"
	textCodeInvalidRequest  = "PRESENCE_REQUEST_INVALID"
	textCodeInternalFailure = "PRESENCE_INTERNAL"
)

func badRequest(textCode, msg string) error {
	return goerrors.New("go-presence: "+msg, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(textCode)
}

func unauthorized(err error, textCode, msg string) error {
	if err == nil {
		return goerrors.New("go-presence: "+msg, goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithTextCode(textCode)
	}
	return goerrors.Wrap(err, goerrors.CategoryAuth, "go-presence: "+msg).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(textCode)
}

func unknownTable(table string) error {
	return goerrors.New("go-presence: unknown table "+table, goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(textCodeUnknownTable)
}

// translateError maps package sentinels onto rich errors carrying an HTTP
// status. Rich errors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return err
	}
	switch {
	case errors.Is(err, types.ErrUnauthorizedPresenceWrite):
		return goerrors.Wrap(err, goerrors.CategoryAuthz, "go-presence: presence write rejected").
			WithCode(goerrors.CodeForbidden).
			WithTextCode(textCodeWriteForbidden)
	case errors.Is(err, types.ErrPresenceDisabled):
		return goerrors.Wrap(err, goerrors.CategoryAuthz, "go-presence: presence tracking disabled").
			WithCode(goerrors.CodeForbidden).
			WithTextCode(textCodeTrackingOff)
	case errors.Is(err, types.ErrPresenceNotFound):
		return goerrors.Wrap(err, goerrors.CategoryNotFound, "go-presence: profile not found").
			WithCode(goerrors.CodeNotFound).
			WithTextCode(textCodeNotFound)
	case errors.Is(err, types.ErrUserIDRequired),
		errors.Is(err, types.ErrActorRequired),
		errors.Is(err, types.ErrInvalidStatus):
		return goerrors.Wrap(err, goerrors.CategoryValidation, "go-presence: invalid presence request").
			WithCode(goerrors.CodeBadRequest).
			WithTextCode(textCodeInvalidRequest)
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "go-presence: presence request failed").
		WithCode(goerrors.CodeInternal).
		WithTextCode(textCodeInternalFailure)
}

type errorBody struct {
	Code     int    `json:"code"`
	TextCode string `json:"text_code,omitempty"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message"`
}

// ErrorHandler renders rich errors as JSON. Use it as fiber.Config.ErrorHandler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Code: fe.Code, Message: fe.Message})
	}

	var rich *goerrors.Error
	if !goerrors.As(translateError(err), &rich) {
		return c.Status(fiber.StatusInternalServerError).JSON(errorBody{
			Code:    fiber.StatusInternalServerError,
			Message: err.Error(),
		})
	}
	status := rich.Code
	if status == 0 {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(errorBody{
		Code:     status,
		TextCode: rich.TextCode,
		Category: fmt.Sprint(rich.Category),
		Message:  rich.Message,
	})
}
