package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Scores are the three independent 0-100 judgments returned by the AI judge.
type Scores struct {
	Wit       int `json:"wit"`
	Relevance int `json:"relevance"`
	Toxicity  int `json:"toxicity"`
}

// Scorer is the external judge contract consumed by the battle engine.
// A failed call never blocks damage resolution; the engine substitutes a
// neutral default.
type Scorer interface {
	Analyze(text, topic string, context []string) (Scores, error)
}

// AIJudgeClient calls the scoring service over HTTP.
type AIJudgeClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewAIJudgeClient(baseURL, token string) *AIJudgeClient {
	return &AIJudgeClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Analyze calls /analyze on the judge service.
func (c *AIJudgeClient) Analyze(text, topic string, context []string) (Scores, error) {
	url := fmt.Sprintf("%s/analyze", c.BaseURL)

	reqBody := map[string]interface{}{
		"text":    text,
		"topic":   topic,
		"context": context,
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return Scores{}, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return Scores{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Printf("[JUDGE] /analyze returned %d: %s", resp.StatusCode, string(body))
		return Scores{}, fmt.Errorf("judge analyze failed: %d", resp.StatusCode)
	}

	var out Scores
	if err := json.Unmarshal(body, &out); err != nil {
		return Scores{}, err
	}

	return out, nil
}
