package handlers

import (
	"net/http"

	"github.com/juancollazo-ch/armorum-backoffice-service/internal/notify"
)

// writeMessage responde el mensaje visible del registro, o 204 si no hay.
func writeMessage(w http.ResponseWriter, n *notify.Notifier) {
	msg, ok := n.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// dismissMessage descarta el mensaje visible antes de su TTL.
func dismissMessage(n *notify.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n.Dismiss()
		w.WriteHeader(http.StatusNoContent)
	}
}
