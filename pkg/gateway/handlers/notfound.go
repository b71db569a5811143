package handlers

import (
	"net/http"

	"github.com/hypecast-live/hypecast/pkg/gateway/apierror"
	"github.com/hypecast-live/hypecast/pkg/gateway/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.Write(w, &apierror.Error{Type: apierror.ErrNotFound, Message: "not found"}, reqID)
}
