package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"Arya-Agent/sdk/go/arya"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		var msg arya.Message
		_ = json.NewDecoder(r.Body).Decode(&msg)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(arya.Job{ID: "job-demo", Text: msg.Text, Status: arya.StatusPending})
	})
	mux.HandleFunc("GET /api/v1/messages/job-demo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(arya.Job{
			ID:     "job-demo",
			Status: arya.StatusSucceeded,
			Reply:  &arya.Reply{Text: "The current price of STRK is $0.4213"},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := arya.NewClient(srv.URL, arya.WithAPIKey("demo-key"), arya.WithHTTPClient(srv.Client()))
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := client.SubmitMessage(ctx, arya.Message{Text: "What is STRK price", Source: "discord"}, false)
	if err != nil {
		panic(err)
	}
	fmt.Printf("submitted job %s (status=%s)\n", job.ID, job.Status)

	done, err := client.WaitForMessage(ctx, job.ID, 100*time.Millisecond)
	if err != nil {
		panic(err)
	}
	fmt.Printf("job %s finished: %s\n", done.ID, done.Reply.Text)
}
