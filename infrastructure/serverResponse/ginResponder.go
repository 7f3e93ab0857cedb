package server_response

import (
	"gateman.io/infrastructure/logger"
	"github.com/gin-gonic/gin"
)

type ginResponder struct{}

func (gr ginResponder) Respond(ctx *gin.Context, code int, message string, payload interface{}, errs []error) {
	ctx.Abort()
	response := map[string]any{
		"message": message,
		"body":    payload,
	}
	if errs != nil {
		errMsgs := []string{}
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		response["errors"] = errMsgs
		logger.Warning("request failed", logger.LoggerOptions{
			Key:  "path",
			Data: ctx.FullPath(),
		}, logger.LoggerOptions{
			Key:  "errors",
			Data: errMsgs,
		})
	}
	ctx.JSON(code, response)
}

var Responder = ginResponder{}
