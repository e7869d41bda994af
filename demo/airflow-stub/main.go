// airflow-stub is a miniature Airflow REST API for trying flightcheck without
// a real deployment. Point airflow.baseUrl at it, run the suite, and watch
// runs advance one state per status poll: queued, then running, then a
// terminal state. DAG IDs listed in FAIL_DAGS finish as failed.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
)

var (
	logger   *slog.Logger
	failDAGs map[string]bool

	mu   sync.Mutex
	runs = map[string]*stubRun{}
)

type stubRun struct {
	DagID       string
	RunID       string
	LogicalDate string
	Polls       int
}

func (r *stubRun) state() string {
	switch {
	case r.Polls <= 1:
		return "queued"
	case r.Polls == 2:
		return "running"
	case failDAGs[r.DagID]:
		return "failed"
	default:
		return "success"
	}
}

func init() {
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	failDAGs = map[string]bool{}
	for _, dag := range strings.Split(os.Getenv("FAIL_DAGS"), ",") {
		if dag = strings.TrimSpace(dag); dag != "" {
			failDAGs[dag] = true
		}
	}
}

func runKey(dagID, runID string) string { return dagID + "/" + runID }

func handleTrigger(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RunID       string `json:"dag_run_id"`
		LogicalDate string `json:"logical_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RunID == "" {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"title": "dag_run_id is required"})
		return
	}

	dagID := r.PathValue("dag")
	run := &stubRun{DagID: dagID, RunID: body.RunID, LogicalDate: body.LogicalDate}

	mu.Lock()
	if _, exists := runs[runKey(dagID, body.RunID)]; exists {
		mu.Unlock()
		jsonResponse(w, http.StatusConflict, map[string]string{"title": "run already exists"})
		return
	}
	runs[runKey(dagID, body.RunID)] = run
	mu.Unlock()

	logger.Info("run triggered", "dag", dagID, "run", body.RunID)
	writeRun(w, http.StatusOK, run, "queued")
}

func handleGetRun(w http.ResponseWriter, r *http.Request) {
	mu.Lock()
	run, ok := runs[runKey(r.PathValue("dag"), r.PathValue("run"))]
	if ok {
		run.Polls++
	}
	mu.Unlock()

	if !ok {
		jsonResponse(w, http.StatusNotFound, map[string]string{"title": "DAGRun not found"})
		return
	}
	writeRun(w, http.StatusOK, run, run.state())
}

func handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	key := runKey(r.PathValue("dag"), r.PathValue("run"))

	mu.Lock()
	_, ok := runs[key]
	delete(runs, key)
	mu.Unlock()

	if !ok {
		jsonResponse(w, http.StatusNotFound, map[string]string{"title": "DAGRun not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleTaskInstances(w http.ResponseWriter, r *http.Request) {
	mu.Lock()
	run, ok := runs[runKey(r.PathValue("dag"), r.PathValue("run"))]
	mu.Unlock()

	if !ok {
		jsonResponse(w, http.StatusNotFound, map[string]string{"title": "DAGRun not found"})
		return
	}

	type task struct {
		TaskID string `json:"task_id"`
		State  string `json:"state"`
	}
	var tasks []task
	switch run.state() {
	case "queued":
		tasks = []task{{"extract", ""}, {"transform", ""}, {"end", ""}}
	case "running":
		tasks = []task{{"extract", "running"}, {"transform", ""}, {"end", ""}}
	case "failed":
		tasks = []task{{"extract", "success"}, {"transform", "failed"}, {"end", "upstream_failed"}}
	default:
		tasks = []task{{"extract", "success"}, {"transform", "success"}, {"end", "success"}}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"task_instances": tasks,
		"total_entries":  len(tasks),
	})
}

func handleVersion(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"version": "2.7.3"})
}

func handleConfigOption(w http.ResponseWriter, r *http.Request) {
	section, option := r.PathValue("section"), r.PathValue("option")
	if section != "core" || option != "executor" {
		jsonResponse(w, http.StatusNotFound, map[string]string{"title": "option not found"})
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"sections": []map[string]any{
			{
				"name": section,
				"options": []map[string]string{
					{"key": option, "value": "LocalExecutor"},
				},
			},
		},
	})
}

func handleProviders(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"providers": []map[string]string{
			{"package_name": "apache-airflow-providers-amazon", "version": "8.16.0"},
			{"package_name": "astro-sdk-python", "version": "1.7.0"},
		},
		"total_entries": 2,
	})
}

func writeRun(w http.ResponseWriter, status int, run *stubRun, state string) {
	jsonResponse(w, status, map[string]string{
		"dag_id":       run.DagID,
		"dag_run_id":   run.RunID,
		"state":        state,
		"logical_date": run.LogicalDate,
	})
}

func jsonResponse(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("encoding response", "error", err)
	}
}

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/dags/{dag}/dagRuns", handleTrigger)
	mux.HandleFunc("GET /api/v1/dags/{dag}/dagRuns/{run}", handleGetRun)
	mux.HandleFunc("DELETE /api/v1/dags/{dag}/dagRuns/{run}", handleDeleteRun)
	mux.HandleFunc("GET /api/v1/dags/{dag}/dagRuns/{run}/taskInstances", handleTaskInstances)
	mux.HandleFunc("GET /api/v1/version", handleVersion)
	mux.HandleFunc("GET /api/v1/config/section/{section}/option/{option}", handleConfigOption)
	mux.HandleFunc("GET /api/v1/providers", handleProviders)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("stub airflow listening", "port", port, "failing", len(failDAGs))
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
