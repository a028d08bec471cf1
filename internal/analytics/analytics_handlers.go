package analytics

import (
	"encoding/json"
	"log"
	"net/http"
)

// clientEvents are the view events the UI may report on its own.
var clientEvents = map[string]bool{
	"app_opened":     true,
	"void_viewed":    true,
	"prism_viewed":   true,
	"gravity_viewed": true,
	"focus_viewed":   true,
}

// ClientEventHandler records an allow-listed client event for the current user.
func ClientEventHandler(rec *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			Name  string         `json:"name"`
			From  string         `json:"from"` // push/deeplink/icon/unknown
			Props map[string]any `json:"props"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if !clientEvents[body.Name] {
			http.Error(w, "unknown event", http.StatusBadRequest)
			return
		}

		env := FromRequest(r)
		env.UserID = uid

		props := map[string]any{"from": body.From}
		for k, v := range body.Props {
			if _, taken := props[k]; !taken {
				props[k] = v
			}
		}

		if err := rec.Log(r.Context(), env, body.Name, props, SourceEventKeyFromRequest(r)); err != nil {
			log.Printf("[WARN] %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}
