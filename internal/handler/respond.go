package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omeasupport/dispatch-service/internal/errs"
)

// respond writes the envelope every endpoint uses:
// {"status": bool, "message": string, "data": ...}.
func respond(c *gin.Context, code int, message string, data interface{}) {
	body := gin.H{"status": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(code, body)
}

// fail maps an error kind to an HTTP status. Internal causes are logged
// here and never reach the client.
func fail(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	code := http.StatusInternalServerError
	switch kind {
	case errs.KindValidation:
		code = http.StatusUnprocessableEntity
	case errs.KindNotFound:
		code = http.StatusNotFound
	case errs.KindForbidden:
		code = http.StatusForbidden
	case errs.KindInvalidTransition, errs.KindInvalidState:
		code = http.StatusBadRequest
	case errs.KindInternal:
		log.Printf("handler: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(code, gin.H{"status": false, "message": errs.MessageOf(err)})
}
