// A mock grade book for local development: it accepts grade recalculation
// notices and logs them.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
)

type notice struct {
	Component string `json:"component"`
	ContextID int64  `json:"contextId"`
	UserID    int64  `json:"userId"`
}

func main() {
	var (
		port   = flag.String("port", "9099", "port to listen on")
		apiKey = flag.String("api-key", "", "required X-API-Key value, empty to accept all")
	)
	flag.Parse()

	var seen int
	mux := http.NewServeMux()
	mux.HandleFunc("/grades/recalculate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if *apiKey != "" && r.Header.Get("X-API-Key") != *apiKey {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		var n notice
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		seen++
		log.Printf("notice %d: recalculate %s grades for user %d in context %d", seen, n.Component, n.UserID, n.ContextID)
		w.WriteHeader(http.StatusAccepted)
	})

	addr := ":" + *port
	log.Printf("mock gradebook listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
