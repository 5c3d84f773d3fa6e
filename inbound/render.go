package inbound

import (
	"encoding/json"
	"net/http"

	"github.com/mikolajkapica/gister/core"
)

type errorBody struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code"`
	Category string `json:"category"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type gistFileResponse struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
	RawURL   string `json:"rawUrl,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type gistSummaryResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	FileCount   int    `json:"fileCount"`
	IsPublic    bool   `json:"isPublic"`
	URL         string `json:"url"`
	UpdatedAt   string `json:"updatedAt"`
}

type gistDetailResponse struct {
	ID          string                      `json:"id"`
	Description string                      `json:"description"`
	Files       map[string]gistFileResponse `json:"files"`
	IsPublic    bool                        `json:"isPublic"`
	URL         string                      `json:"url"`
	UpdatedAt   string                      `json:"updatedAt"`
}

func toSummaryResponse(in core.GistSummary) gistSummaryResponse {
	return gistSummaryResponse{
		ID:          in.ID,
		Description: in.Description,
		FileCount:   in.FileCount,
		IsPublic:    in.Public,
		URL:         in.URL,
		UpdatedAt:   in.UpdatedAt,
	}
}

func toSummaryResponses(in []core.GistSummary) []gistSummaryResponse {
	out := make([]gistSummaryResponse, 0, len(in))
	for _, summary := range in {
		out = append(out, toSummaryResponse(summary))
	}
	return out
}

func toDetailResponse(in core.GistDetail) gistDetailResponse {
	files := make(map[string]gistFileResponse, len(in.Files))
	for name, file := range in.Files {
		files[name] = gistFileResponse{
			Filename: file.Filename,
			Content:  file.Content,
			Language: file.Language,
			RawURL:   file.RawURL,
			Size:     file.Size,
		}
	}
	return gistDetailResponse{
		ID:          in.ID,
		Description: in.Description,
		Files:       files,
		IsPublic:    in.Public,
		URL:         in.URL,
		UpdatedAt:   in.UpdatedAt,
	}
}

func renderJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// renderError maps any failure into the typed envelope. The mapped error
// never carries token material; only the message, text code and category
// reach the wire.
func renderError(w http.ResponseWriter, err error) {
	mapped := core.MapError(err)
	if mapped == nil {
		renderJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Message:  "An unexpected error occurred",
			TextCode: core.GisterErrorInternal,
			Category: "internal",
		}})
		return
	}
	renderJSON(w, mapped.Code, errorEnvelope{Error: errorBody{
		Message:  mapped.Message,
		TextCode: mapped.TextCode,
		Category: string(mapped.Category),
	}})
}
