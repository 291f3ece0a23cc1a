// Package main implements a mock OpenAI-compatible server for local testing.
// It serves /v1/chat/completions and /v1/files so pressdesk can run end to
// end without a real provider or API key.
//
// Usage:
//
//	mock-openai -port 11434 [-reply "canned text"]
//
// Without -reply, the assistant message echoes the last user message wrapped
// in a short HTML envelope, which makes prompt compilation visible in the
// extension UI. Uploaded files get a generated id and are held in memory;
// /stats reports call counts for test assertions.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int                 `json:"index"`
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type fileResponse struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Bytes    int    `json:"bytes"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
}

// --- Server ---

type server struct {
	reply string

	completions atomic.Int64
	uploads     atomic.Int64

	filesMu sync.Mutex
	files   map[string]int // file id → size in bytes
}

func newServer(reply string) *server {
	return &server{
		reply: reply,
		files: make(map[string]int),
	}
}

func main() {
	port := flag.Int("port", 11434, "port to listen on")
	reply := flag.String("reply", "", "fixed assistant reply (default: echo the last user message)")
	flag.Parse()

	s := newServer(*reply)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("POST /v1/files", s.handleFileUpload)
	mux.HandleFunc("GET /stats", s.handleStats)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock OpenAI server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	callNum := s.completions.Add(1)
	log.Printf("[call %d] model=%s messages=%d", callNum, req.Model, len(req.Messages))

	content := s.reply
	if content == "" {
		content = "<p>" + lastUserText(req.Messages) + "</p>"
	}

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index: 0,
				Message: chatResponseMessage{
					Role:    "assistant",
					Content: content,
				},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4, // rough estimate
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *server) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeOpenAIError(w, http.StatusBadRequest, fmt.Sprintf("read file: %v", err))
		return
	}

	uploadNum := s.uploads.Add(1)
	fileID := fmt.Sprintf("file-mock-%d", uploadNum)

	s.filesMu.Lock()
	s.files[fileID] = len(data)
	s.filesMu.Unlock()

	log.Printf("[upload %d] id=%s name=%s bytes=%d", uploadNum, fileID, header.Filename, len(data))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(fileResponse{
		ID:       fileID,
		Object:   "file",
		Bytes:    len(data),
		Filename: header.Filename,
		Purpose:  r.FormValue("purpose"),
	})
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.filesMu.Lock()
	fileCount := len(s.files)
	s.filesMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"completions": s.completions.Load(),
		"uploads":     s.uploads.Load(),
		"files":       fileCount,
	})
}

// lastUserText returns the text of the last user message. Structured content
// parts contribute their text entries.
func lastUserText(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		switch content := messages[i].Content.(type) {
		case string:
			return content
		case []any:
			for _, part := range content {
				m, ok := part.(map[string]any)
				if !ok {
					continue
				}
				if text, ok := m["text"].(string); ok {
					return text
				}
			}
		}
	}
	return ""
}

func writeOpenAIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
		},
	})
}
