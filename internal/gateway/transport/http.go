package transport

import (
	"encoding/json"
	"log"
	"net/http"
)

// SendServerRes writes a response body with the given status; bodies
// at 400 or above are logged before being sent.
func SendServerRes(w http.ResponseWriter, body []byte, status int, err error) {
	msg := string(body)
	if status >= 400 {
		internalMsg := "ERR: " + msg
		if err != nil {
			internalMsg += " || Internal error msg: " + err.Error()
		}
		log.Println(internalMsg)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, writeErr := w.Write(body); writeErr != nil {
		log.Println("ERR: Error writing response:", writeErr)
	}
}

// SendJSONRes marshals v and writes it with the given status.
func SendJSONRes(w http.ResponseWriter, v interface{}, status int) {
	body, err := json.Marshal(v)
	if err != nil {
		SendServerRes(w, []byte(`{"error":"failed to encode response"}`), http.StatusInternalServerError, err)
		return
	}
	SendServerRes(w, body, status, nil)
}

// SendErrorRes writes a JSON error envelope.
func SendErrorRes(w http.ResponseWriter, msg string, status int, err error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	SendServerRes(w, body, status, err)
}

// SendFileRes writes a downloadable attachment.
func SendFileRes(w http.ResponseWriter, body []byte, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Println("ERR: Error writing response:", err)
	}
}
