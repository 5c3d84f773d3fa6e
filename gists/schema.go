package gists

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikolajkapica/gister/core"
)

// Raw wire shapes from the external API. Pointer fields so required keys
// that arrive missing or null can be rejected instead of zero-valued.
type rawGistFile struct {
	Filename *string `json:"filename"`
	Content  *string `json:"content"`
	Language *string `json:"language"`
	RawURL   *string `json:"raw_url"`
	Size     *int64  `json:"size"`
}

type rawGist struct {
	ID          *string                `json:"id"`
	Description *string                `json:"description"`
	Public      *bool                  `json:"public"`
	HTMLURL     *string                `json:"html_url"`
	UpdatedAt   *string                `json:"updated_at"`
	Files       map[string]rawGistFile `json:"files"`
}

func decodeSummaries(body []byte) ([]core.GistSummary, error) {
	var raw []rawGist
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, core.NewSchemaViolationError("listing is not a JSON array of gists")
	}
	summaries := make([]core.GistSummary, 0, len(raw))
	for i, item := range raw {
		summary, err := reshapeSummary(item)
		if err != nil {
			return nil, core.NewSchemaViolationError(fmt.Sprintf("item %d: %v", i, err))
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func decodeDetail(body []byte) (core.GistDetail, error) {
	var raw rawGist
	if err := json.Unmarshal(body, &raw); err != nil {
		return core.GistDetail{}, core.NewSchemaViolationError("response is not a JSON gist object")
	}
	detail, err := reshapeDetail(raw)
	if err != nil {
		return core.GistDetail{}, core.NewSchemaViolationError(err.Error())
	}
	return detail, nil
}

// reshapeSummary tolerates an absent files map: the listing payload may
// omit it and the file count is then zero. Details require it.
func reshapeSummary(raw rawGist) (core.GistSummary, error) {
	if err := validateRequiredGistFields(raw); err != nil {
		return core.GistSummary{}, err
	}
	return core.GistSummary{
		ID:          *raw.ID,
		Description: readOptionalString(raw.Description),
		FileCount:   len(raw.Files),
		Public:      *raw.Public,
		URL:         *raw.HTMLURL,
		UpdatedAt:   *raw.UpdatedAt,
	}, nil
}

func reshapeDetail(raw rawGist) (core.GistDetail, error) {
	if err := validateRequiredGistFields(raw); err != nil {
		return core.GistDetail{}, err
	}
	if raw.Files == nil {
		return core.GistDetail{}, fmt.Errorf("missing files map")
	}
	files := make(map[string]core.GistFile, len(raw.Files))
	for key, entry := range raw.Files {
		if entry.Filename == nil || strings.TrimSpace(*entry.Filename) == "" {
			return core.GistDetail{}, fmt.Errorf("file %q: missing filename", key)
		}
		if entry.Content == nil {
			return core.GistDetail{}, fmt.Errorf("file %q: missing content", key)
		}
		file := core.GistFile{
			Filename: *entry.Filename,
			Content:  *entry.Content,
			Language: readOptionalString(entry.Language),
			RawURL:   readOptionalString(entry.RawURL),
		}
		if entry.Size != nil {
			file.Size = *entry.Size
		}
		files[key] = file
	}
	return core.GistDetail{
		ID:          *raw.ID,
		Description: readOptionalString(raw.Description),
		Files:       files,
		Public:      *raw.Public,
		URL:         *raw.HTMLURL,
		UpdatedAt:   *raw.UpdatedAt,
	}, nil
}

func validateRequiredGistFields(raw rawGist) error {
	if raw.ID == nil || strings.TrimSpace(*raw.ID) == "" {
		return fmt.Errorf("missing id")
	}
	if raw.Public == nil {
		return fmt.Errorf("missing public flag")
	}
	if raw.HTMLURL == nil || strings.TrimSpace(*raw.HTMLURL) == "" {
		return fmt.Errorf("missing html_url")
	}
	if raw.UpdatedAt == nil || strings.TrimSpace(*raw.UpdatedAt) == "" {
		return fmt.Errorf("missing updated_at")
	}
	return nil
}

func readOptionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// Outbound wire shapes. The external API takes only content per file entry.
type outboundFile struct {
	Content string `json:"content"`
}

type createGistPayload struct {
	Description string                  `json:"description"`
	Public      bool                    `json:"public"`
	Files       map[string]outboundFile `json:"files"`
}

type updateGistPayload struct {
	Description *string                 `json:"description,omitempty"`
	Files       map[string]outboundFile `json:"files,omitempty"`
}

func outboundFiles(files map[string]core.FileInput) map[string]outboundFile {
	if len(files) == 0 {
		return nil
	}
	out := make(map[string]outboundFile, len(files))
	for name, file := range files {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		out[trimmed] = outboundFile{Content: file.Content}
	}
	return out
}
