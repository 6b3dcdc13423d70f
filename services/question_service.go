package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// QuestionSelector supplies a problem id both users of a prospective match can
// work on. An empty question id means the selector had nothing usable for the
// given difficulty/topics and the worker should try the next candidate.
type QuestionSelector interface {
	SelectQuestion(ctx context.Context, matchID, difficulty string, topics []string) (string, error)
}

// QuestionService calls the external question-selection service over HTTP.
type QuestionService struct {
	BaseURL string
	Client  *http.Client
}

// NewQuestionService creates a QuestionService with a short request timeout,
// since the worker blocks on this call in the middle of a match attempt.
func NewQuestionService(baseURL string) *QuestionService {
	return &QuestionService{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 2 * time.Second},
	}
}

// SelectQuestion asks the question service for a compatible problem id.
func (qs *QuestionService) SelectQuestion(ctx context.Context, matchID, difficulty string, topics []string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"matchId":    matchID,
		"difficulty": difficulty,
		"topics":     topics,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal question request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, qs.BaseURL+"/api/questions/select", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to build question request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := qs.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("question service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// No compatible question is a normal outcome, not an error.
		return "", nil
	}

	var reply struct {
		QuestionID string `json:"questionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("failed to decode question response: %w", err)
	}
	return reply.QuestionID, nil
}
