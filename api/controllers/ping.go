package controllers

import (
	"net/http"
	"strconv"

	"github.com/halcyonretail/storefront-sync/api/middleware"
	"github.com/halcyonretail/storefront-sync/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if ident, ok := middleware.IdentityFromContext(r.Context()); ok {
			payload["user_id"] = strconv.FormatInt(ident.UserID, 10)
		}
		responses.WriteSuccess(w, payload)
	}
}
